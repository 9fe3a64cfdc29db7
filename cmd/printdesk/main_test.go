package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printdesk/printdesk/internal/config"
	"github.com/printdesk/printdesk/internal/sink"
	"github.com/printdesk/printdesk/pkg/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		code errors.ErrorCode
		want int
	}{
		{errors.ErrCodeUpstream, errors.ExitCodeUpstream},
		{errors.ErrCodeUpstreamUnreachable, errors.ExitCodeUpstream},
		{errors.ErrCodeNotFound, errors.ExitCodeUpstream},
		{errors.ErrCodeUnauthorized, errors.ExitCodeUpstream},
		{errors.ErrCodeConfigInvalid, errors.ExitCodeConfigValidation},
		{errors.ErrCodeTemplateEmpty, 1},
		{errors.ErrCodePrintUnsupported, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(errors.New(tt.code, "x")))
		})
	}
}

func TestDocumentBaseURL(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "/documents/", documentBaseURL(cfg))

	cfg.Server.PublicURL = "https://print.escola.test/"
	assert.Equal(t, "https://print.escola.test/documents/", documentBaseURL(cfg))
}

func TestCLISink(t *testing.T) {
	newCmd := func(args ...string) *cobra.Command {
		cmd := newDocumentCmd("render", "", nil)
		require.NoError(t, cmd.Flags().Parse(args))
		return cmd
	}
	cfg := config.Default()

	s, printer, err := cliSink(newCmd(), cfg)
	require.NoError(t, err)
	assert.Nil(t, printer)
	require.IsType(t, &sink.FileSink{}, s)
	assert.Equal(t, cfg.Render.OutputDir, s.(*sink.FileSink).Dir)

	s, _, err = cliSink(newCmd("--out", "docs"), cfg)
	require.NoError(t, err)
	assert.Equal(t, "docs", s.(*sink.FileSink).Dir)

	s, _, err = cliSink(newCmd("--open"), cfg)
	require.NoError(t, err)
	assert.Equal(t, "browser", s.Name())

	cfg.Chrome.Path = "/non/existent/chrome"
	_, _, err = cliSink(newCmd("--pdf"), cfg)
	assert.True(t, errors.HasCode(err, errors.ErrCodePrintUnsupported))
}

func TestDocumentCommands(t *testing.T) {
	root := &cobra.Command{Use: "printdesk"}
	addDocumentCommands(root)

	for _, name := range []string{"render", "contract", "booklet", "statement", "gradebook", "report-card"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
		assert.NotNil(t, cmd.Flags().Lookup("pdf"), name)
		if name != "render" {
			assert.NotNil(t, cmd.Flags().Lookup("id"), name)
			assert.NotNil(t, cmd.Flags().Lookup("token"), name)
		}
	}
}
