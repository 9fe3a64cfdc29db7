package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/printdesk/printdesk/consts"
	"github.com/printdesk/printdesk/internal/config"
	"github.com/printdesk/printdesk/internal/documents"
	"github.com/printdesk/printdesk/internal/engine"
	"github.com/printdesk/printdesk/internal/model"
	"github.com/printdesk/printdesk/internal/placeholder"
	"github.com/printdesk/printdesk/internal/render"
	"github.com/printdesk/printdesk/internal/sink"
	"github.com/printdesk/printdesk/pkg/errors"
	"github.com/printdesk/printdesk/pkg/logger"
)

// documentFunc renders one document kind with the parsed flags
type documentFunc func(ctx context.Context, cmd *cobra.Command, e *engine.Engine, job engine.Job) (*engine.Result, error)

// addDocumentCommands registers render and the school document commands
func addDocumentCommands(root *cobra.Command) {
	renderCmd := newDocumentCmd("render", "Render a custom template with fields", runRender)
	renderCmd.Flags().String("template", "", "HTML template file (required)")
	renderCmd.Flags().String("fields", "", "JSON object file with the placeholder values")
	renderCmd.Flags().String("title", "", "document title")
	renderCmd.Flags().String("styles", "", "CSS file placed in the document head")
	renderCmd.Flags().Bool("paginate", false, "split the body into labelled pages")
	renderCmd.Flags().Bool("auto-print", false, "open the print dialog once the document is ready")
	_ = renderCmd.MarkFlagRequired("template")

	contractCmd := newSubjectCmd("contract", "Render a financial contract", func(ctx context.Context, cmd *cobra.Command, e *engine.Engine, job engine.Job) (*engine.Result, error) {
		id, _ := cmd.Flags().GetString("id")
		opts := documents.ContractOptions{}
		opts.IncludeSchedule, _ = cmd.Flags().GetBool("schedule")
		if path, _ := cmd.Flags().GetString("template"); path != "" {
			tpl, err := os.ReadFile(path)
			if err != nil {
				return nil, errors.ErrValidation(fmt.Sprintf("cannot read template: %v", err))
			}
			opts.Template = string(tpl)
		}
		return e.Contract(ctx, job, id, opts)
	})
	contractCmd.Flags().String("template", "", "HTML template file overriding the contract's own")
	contractCmd.Flags().Bool("schedule", false, "append the installment schedule")

	bookletCmd := newSubjectCmd("booklet", "Render the payment booklet of one installment", func(ctx context.Context, cmd *cobra.Command, e *engine.Engine, job engine.Job) (*engine.Result, error) {
		id, _ := cmd.Flags().GetString("id")
		n, _ := cmd.Flags().GetInt("n")
		if n <= 0 {
			return nil, errors.ErrValidation("--n must be a positive installment number")
		}
		return e.Booklet(ctx, job, id, n)
	})
	bookletCmd.Flags().Int("n", 0, "installment number (required)")
	_ = bookletCmd.MarkFlagRequired("n")

	statementCmd := newSubjectCmd("statement", "Render a guardian's financial statement", func(ctx context.Context, cmd *cobra.Command, e *engine.Engine, job engine.Job) (*engine.Result, error) {
		id, _ := cmd.Flags().GetString("id")
		return e.Statement(ctx, job, id)
	})

	gradebookCmd := newSubjectCmd("gradebook", "Render the class report of a gradebook", func(ctx context.Context, cmd *cobra.Command, e *engine.Engine, job engine.Job) (*engine.Result, error) {
		id, _ := cmd.Flags().GetString("id")
		return e.Gradebook(ctx, job, id)
	})

	reportCardCmd := newSubjectCmd("report-card", "Render a student's report card", func(ctx context.Context, cmd *cobra.Command, e *engine.Engine, job engine.Job) (*engine.Result, error) {
		id, _ := cmd.Flags().GetString("id")
		year, _ := cmd.Flags().GetInt("year")
		return e.ReportCard(ctx, job, id, year)
	})
	reportCardCmd.Flags().Int("year", 0, "school year (default: the API's current year)")

	root.AddCommand(renderCmd, contractCmd, bookletCmd, statementCmd, gradebookCmd, reportCardCmd)
}

// newSubjectCmd creates a command rendering the school API record --id
func newSubjectCmd(use, short string, fn documentFunc) *cobra.Command {
	cmd := newDocumentCmd(use, short, fn)
	cmd.Flags().String("id", "", "record id in the school API (required)")
	cmd.Flags().String("token", "", "bearer token (default: upstream.token)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

// newDocumentCmd adds the delivery flags shared by every document command
func newDocumentCmd(use, short string, fn documentFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runDocument(cmd, fn)
		},
	}
	cmd.Flags().String("out", "", "output directory (default: render.output_dir)")
	cmd.Flags().Bool("open", false, "open the document in the desktop browser")
	cmd.Flags().Bool("pdf", false, "print the document to PDF with headless Chrome")
	cmd.Flags().Bool("verbose", false, "log at the configured level instead of warnings only")
	return cmd
}

// runDocument loads the configuration, renders with fn and reports where the
// document went. Failures exit with the code matching the error.
func runDocument(cmd *cobra.Command, fn documentFunc) {
	cfg := mustLoadConfig()

	logCfg := cfg.Logging
	if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
		logCfg.Level = "warn"
	}
	if err := logger.Init(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out, printer, err := cliSink(cmd, cfg)
	if err != nil {
		exitWithError(err)
	}

	logs, closeLogs := openRenderLog(cfg, false)
	e, closeEngine, err := newEngine(cfg, logs)
	if err != nil {
		closeLogs()
		exitWithError(err)
	}

	token, _ := cmd.Flags().GetString("token")
	res, err := fn(ctx, cmd, e, engine.Job{Source: model.RenderSourceCLI, Token: token, Sink: out})
	var pr *sink.PrintResult
	if err == nil && printer != nil {
		pr, err = printer.Print(ctx, res.Handle)
	}
	if err == nil && pr != nil {
		if open, _ := cmd.Flags().GetBool("open"); open {
			if lerr := sink.SystemLauncher(ctx, pr.Path); lerr != nil {
				err = sink.PopupBlocked(lerr)
			}
		}
	}
	closeEngine()
	closeLogs()

	if err != nil {
		exitWithError(err)
	}
	printResult(res, pr)
}

// runRender renders the custom template given by --template and --fields
func runRender(ctx context.Context, cmd *cobra.Command, e *engine.Engine, job engine.Job) (*engine.Result, error) {
	in := render.Input{Kind: consts.KindCustom}
	in.Title, _ = cmd.Flags().GetString("title")
	in.Paginate, _ = cmd.Flags().GetBool("paginate")
	in.AutoPrint, _ = cmd.Flags().GetBool("auto-print")

	path, _ := cmd.Flags().GetString("template")
	tpl, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ErrValidation(fmt.Sprintf("cannot read template: %v", err))
	}
	in.Template = string(tpl)

	if path, _ := cmd.Flags().GetString("styles"); path != "" {
		css, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.ErrValidation(fmt.Sprintf("cannot read styles: %v", err))
		}
		in.Styles = string(css)
	}

	in.Fields = placeholder.NewFieldMap()
	if path, _ := cmd.Flags().GetString("fields"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.ErrValidation(fmt.Sprintf("cannot read fields: %v", err))
		}
		if err := json.Unmarshal(data, in.Fields); err != nil {
			return nil, errors.ErrValidation(fmt.Sprintf("fields must be a JSON object: %v", err))
		}
	}

	return e.Render(ctx, job, in)
}

// cliSink picks the delivery for the --out, --open and --pdf flags. The
// printer is set when the document must also be printed.
func cliSink(cmd *cobra.Command, cfg *config.Config) (sink.DocumentSink, sink.Printer, error) {
	dir, _ := cmd.Flags().GetString("out")
	if dir == "" {
		dir = cfg.Render.OutputDir
	}

	if pdf, _ := cmd.Flags().GetBool("pdf"); pdf {
		cs := newChromeSink(cfg)
		if cs == nil {
			return nil, nil, errors.New(errors.ErrCodePrintUnsupported,
				"PDF export needs Chrome; set chrome.path or CHROME_PATH")
		}
		cs.OutputDir = dir
		return cs, cs, nil
	}
	if open, _ := cmd.Flags().GetBool("open"); open {
		return sink.NewBrowserSink(), nil, nil
	}
	return sink.NewFileSink(dir), nil, nil
}

// printResult reports the delivered document on stdout
func printResult(res *engine.Result, pr *sink.PrintResult) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	doc := res.Document
	location := res.Handle.Location
	pages := doc.Pages
	if pr != nil {
		location = pr.Path
		pages = pr.Pages
	}

	green.Printf("✓ %s %s\n", doc.Kind, location)
	if pages > 0 {
		fmt.Printf("  %d page(s)\n", pages)
	}
	if doc.Degraded {
		yellow.Println("  ⚠ pagination degraded to a single page")
	}
	if len(doc.Missing) > 0 {
		yellow.Printf("  ⚠ missing fields: %v\n", doc.Missing)
	}
}

// exitWithError prints err and exits with its exit code
func exitWithError(err error) {
	appErr := engine.AsAppError(err)
	red := color.New(color.FgRed)
	red.Fprintf(os.Stderr, "[ERROR] %s: %s\n", appErr.Code, appErr.Message)
	os.Exit(exitCode(appErr))
}

// exitCode maps an error to the process exit code
func exitCode(err *errors.AppError) int {
	switch err.Code {
	case errors.ErrCodeUpstream, errors.ErrCodeUpstreamUnreachable, errors.ErrCodeUpstreamDecode,
		errors.ErrCodeNotFound, errors.ErrCodeUnauthorized, errors.ErrCodeForbidden:
		return errors.ExitCodeUpstream
	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigNotFound, errors.ErrCodeConfigParse:
		return errors.ExitCodeConfigValidation
	default:
		return 1
	}
}
