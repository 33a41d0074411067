package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/reoring/kim"
	"github.com/reoring/kim/i18n"
	"github.com/reoring/kim/internal/schemafile"
	"github.com/reoring/kim/source"
)

const (
	exitOK      = 0
	exitInvalid = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `kim CLI

Usage:
  kim marshal   -schema s.yaml [-in file|-] [-role name] [-fail-fast] [-max-bytes n]
  kim serialize -schema s.yaml [-in file|-] [-role name] [-max-bytes n]
  kim schema    -schema s.yaml [-role name]

Input files ending in .yaml or .yml are read as YAML, anything else as JSON.
Environment:
  KIM_LANG       message language (en, ja)
  KIM_LOG_LEVEL  debug, info, warn or error`)
}

// cli carries what every subcommand needs.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	log    *slog.Logger
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return exitUsage
	}
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "kim: %v\n", err)
		return exitUsage
	}
	level, err := cfg.level()
	if err != nil {
		fmt.Fprintf(stderr, "kim: %v\n", err)
		return exitUsage
	}
	i18n.SetLanguage(cfg.Lang)

	c := &cli{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		log:    slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
	}
	switch args[0] {
	case "marshal":
		return c.marshalCmd(ctx, args[1:])
	case "serialize":
		return c.serializeCmd(ctx, args[1:])
	case "schema":
		return c.schemaCmd(args[1:])
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return exitOK
	}
	usage(stderr)
	return exitUsage
}

type commonFlags struct {
	schema   string
	in       string
	role     string
	maxBytes int64
}

func (c *cli) flagSet(name string, cf *commonFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.StringVar(&cf.schema, "schema", "", "schema descriptor (YAML or JSON)")
	fs.StringVar(&cf.role, "role", "", "named role defined in the schema")
	return fs
}

func (c *cli) inputFlags(fs *flag.FlagSet, cf *commonFlags) {
	fs.StringVar(&cf.in, "in", "-", "input document, - for stdin")
	fs.Int64Var(&cf.maxBytes, "max-bytes", 0, "reject input larger than this many bytes (0: no limit)")
}

func (c *cli) marshalCmd(ctx context.Context, args []string) int {
	var cf commonFlags
	var failFast bool
	fs := c.flagSet("marshal", &cf)
	c.inputFlags(fs, &cf)
	fs.BoolVar(&failFast, "fail-fast", false, "stop at the first invalid field")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	mp, code := c.mapper(cf, kim.WithFailFast(failFast))
	if mp == nil {
		return code
	}
	data, code := c.readInput(cf)
	if data == nil {
		return code
	}
	out, err := mp.Marshal(ctx, data)
	if err != nil {
		return c.fail(err)
	}
	return c.write(out)
}

func (c *cli) serializeCmd(ctx context.Context, args []string) int {
	var cf commonFlags
	fs := c.flagSet("serialize", &cf)
	c.inputFlags(fs, &cf)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	mp, code := c.mapper(cf)
	if mp == nil {
		return code
	}
	data, code := c.readInput(cf)
	if data == nil {
		return code
	}
	out, err := mp.Serialize(ctx, data)
	if err != nil {
		return c.fail(err)
	}
	return c.write(out)
}

func (c *cli) schemaCmd(args []string) int {
	var cf commonFlags
	fs := c.flagSet("schema", &cf)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	mp, code := c.mapper(cf)
	if mp == nil {
		return code
	}
	s, err := mp.Mapping().JSONSchema()
	if err != nil {
		return c.fail(err)
	}
	return c.write(s)
}

func (c *cli) mapper(cf commonFlags, opts ...kim.MapperOption) (*kim.Mapper, int) {
	if cf.schema == "" {
		fmt.Fprintln(c.stderr, "kim: -schema is required")
		return nil, exitUsage
	}
	m, err := schemafile.Load(cf.schema)
	if err != nil {
		fmt.Fprintf(c.stderr, "kim: %v\n", err)
		return nil, exitUsage
	}
	opts = append(opts, kim.WithLogger(c.log))
	if cf.role != "" {
		opts = append(opts, kim.WithRoleName(cf.role))
	}
	mp, err := kim.NewMapper(m, opts...)
	if err != nil {
		fmt.Fprintf(c.stderr, "kim: %v\n", err)
		return nil, exitUsage
	}
	c.log.Debug("schema loaded", slog.String("path", cf.schema), slog.String("mapping", m.Name()), slog.Int("fields", mp.Mapping().Len()))
	return mp, exitOK
}

func (c *cli) readInput(cf commonFlags) (map[string]any, int) {
	var (
		b   []byte
		err error
	)
	if cf.in == "-" || cf.in == "" {
		b, err = io.ReadAll(c.stdin)
	} else {
		b, err = os.ReadFile(cf.in)
	}
	if err != nil {
		fmt.Fprintf(c.stderr, "kim: read input: %v\n", err)
		return nil, exitUsage
	}
	var opts []source.Option
	if cf.maxBytes > 0 {
		opts = append(opts, source.WithMaxBytes(cf.maxBytes))
	}
	data, err := source.Bytes(cf.in, b, opts...)
	if err != nil {
		if _, ok := kim.AsIssues(err); ok {
			return nil, c.fail(err)
		}
		fmt.Fprintf(c.stderr, "kim: %v\n", err)
		return nil, exitUsage
	}
	return data, exitOK
}

type issueReport struct {
	Issues kim.Issues `json:"issues"`
}

// fail reports issues as JSON on stdout; anything else is a schema or usage
// problem.
func (c *cli) fail(err error) int {
	if iss, ok := kim.AsIssues(err); ok {
		c.log.Info("validation failed", slog.Int("issues", len(iss)))
		if werr := source.EncodeJSON(c.stdout, issueReport{Issues: iss}); werr != nil {
			fmt.Fprintf(c.stderr, "kim: %v\n", werr)
		}
		return exitInvalid
	}
	var fe *kim.FieldError
	if errors.As(err, &fe) {
		fmt.Fprintf(c.stderr, "kim: schema error: %v\n", err)
		return exitUsage
	}
	fmt.Fprintf(c.stderr, "kim: %v\n", err)
	return exitUsage
}

func (c *cli) write(v any) int {
	if err := source.EncodeJSON(c.stdout, v); err != nil {
		fmt.Fprintf(c.stderr, "kim: %v\n", err)
		return exitUsage
	}
	return exitOK
}
