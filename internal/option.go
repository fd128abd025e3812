package internal

import (
	"io"
	"os"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithStdio replaces the streams used by the stdio transport.
func WithStdio(in io.Reader, out io.Writer) Option {
	return func(a *application) {
		a.stdin = in
		a.stdout = out
	}
}

// WithLogOutput sets where logs are written. Defaults to stderr because
// stdout carries the stdio transport.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.stderr = w
	}
}

func newApplication(opts ...Option) *application {
	app := &application{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}
