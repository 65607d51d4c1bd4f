package container

import (
	"io"

	"srgscan/adapters/excel"
	"srgscan/app"
	"srgscan/internal"
	"srgscan/internal/config"
	"srgscan/internal/errors"
	"srgscan/ports"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Adapters
	Reader ports.MatrixReader
	Writer ports.ResultWriter

	// Services
	SRGService *app.SRGService
}

// New creates a new dependency injection container. Log output goes to
// logOut at the configured level.
func New(cfg *config.Config, logOut io.Writer, codeVersion string) (*Container, error) {
	if cfg == nil {
		return nil, errors.InternalError("config cannot be nil")
	}

	level, _ := internal.ParseLogLevel(cfg.LogLevel)
	c := &Container{
		Config: cfg,
		Logger: internal.NewLoggerTo(logOut, level),
	}

	if err := c.initAdapters(); err != nil {
		return nil, err
	}
	c.SRGService = app.NewSRGService(c.Reader, c.Writer, codeVersion, c.Logger)
	return c, nil
}

func (c *Container) initAdapters() error {
	c.Reader = excel.NewDataReader(c.Logger)

	writer, err := excel.NewDataWriter(c.Config.Output.Dir, c.Config.Output.TableFormat, c.Logger)
	if err != nil {
		return err
	}
	c.Writer = writer
	return nil
}
