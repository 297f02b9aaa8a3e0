// seehuhn.de/go/pdfprotect - password protection for PDF files
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Pdf-protect encrypts all PDF files in a folder with a user and an owner
// password.
//
// Usage:
//
//	pdf-protect [flags]
//	pdf-protect info [--password PWD] FILE
//	pdf-protect verify --user-password PWD [--owner-password PWD] FILE
//
// Settings are read from appsettings.json in the working directory (or
// the file given by --config) and can be overridden on the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mitchellh/colorstring"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"seehuhn.de/go/pdfprotect/batch"
	"seehuhn.de/go/pdfprotect/internal/buildinfo"
	"seehuhn.de/go/pdfprotect/internal/config"
	"seehuhn.de/go/pdfprotect/protect"
)

var (
	configFile        string
	sourceFolder      string
	outputFolder      string
	userPassword      string
	ownerPassword     string
	sourcePassword    string
	askSourcePassword bool
	deleteSource      bool
	workers           int
	xrefStream        bool
	verbose           bool
	noColor           bool
)

// errIncomplete signals that not every file could be processed.  The
// details have already been reported.
var errIncomplete = errors.New("not all files were processed")

func main() {
	rootCmd := &cobra.Command{
		Use:   "pdf-protect",
		Short: "Protect PDF files with a password",
		Long: `Pdf-protect encrypts every PDF file in the source folder using
AES-256, allowing printing only, and writes the result to the output
folder.  Each output file is re-opened with the user password to make
sure it can be read.`,
		Version:       buildinfo.Version(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runProtect,
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "settings file (default "+config.DefaultFile+")")
	flags.StringVarP(&sourceFolder, "source", "s", "", "folder containing the PDF files (default: working directory)")
	flags.StringVarP(&outputFolder, "output", "o", "", "folder for the protected files, relative to the source folder")
	flags.StringVarP(&userPassword, "user-password", "u", "", "password needed to open the protected files")
	flags.StringVarP(&ownerPassword, "owner-password", "p", "", "password granting full access")
	flags.StringVar(&sourcePassword, "source-password", "", "password of already encrypted source files")
	flags.BoolVar(&askSourcePassword, "ask-source-password", false, "read the source password from the terminal")
	flags.BoolVar(&deleteSource, "delete-source", false, "delete source files after successful processing")
	flags.IntVarP(&workers, "workers", "t", 0, "number of files processed concurrently (default: number of CPUs)")
	flags.BoolVar(&xrefStream, "xref-stream", false, "write cross-reference streams instead of tables")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "log details to stderr")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured output")

	rootCmd.AddCommand(newInfoCmd(), newVerifyCmd())
	rootCmd.SetVersionTemplate(buildinfo.Short("pdf-protect") + "\n")

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errIncomplete) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func runProtect(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	settings, err := config.Load(configFile, cwd)
	if err != nil {
		return err
	}
	err = applyFlags(cmd, settings)
	if err != nil {
		return err
	}
	source, output, err := settings.Folders(cwd)
	if err != nil {
		return err
	}

	out := newConsole(os.Stdout)
	out.Printf("Source folder: %s\n", source)
	out.Printf("Output folder: %s\n", output)

	files, err := batch.Sources(source)
	if err != nil {
		return fmt.Errorf("source folder: %w", err)
	}
	if len(files) == 0 {
		out.Printf("\n[red]No PDF files found in the source folder.\n")
		return nil
	}
	out.Printf("\nNumber of PDF files found in source folder: %d\n", len(files))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := newProgressBar(len(files))
	cfg := &batch.Config{
		SourceDir: source,
		OutputDir: output,
		Protect: protect.Options{
			UserPassword:   settings.UserPassword,
			OwnerPassword:  settings.OwnerPassword,
			SourcePassword: settings.SourcePassword,
			XRefStream:     xrefStream,
		},
		DeleteSource: settings.DeleteSourceFile,
		Workers:      settings.Workers,
		Logger:       newLogger(),
		OnResult: func(res batch.Result) {
			if bar != nil {
				bar.Clear()
			}
			out.Result(res)
			if bar != nil {
				bar.Add(1)
			}
		},
	}
	summary, err := batch.Run(ctx, cfg)
	if bar != nil {
		bar.Finish()
	}
	if err != nil && summary == nil {
		return err
	}
	if err != nil {
		out.Printf("\n[red]Interrupted after %d of %d files.\n", summary.Attempted(), len(files))
		return errIncomplete
	}

	switch {
	case summary.AllOK():
		out.Printf("\n[green]All files successfully processed.\n")
		return nil
	case summary.Succeeded() == 0:
		out.Printf("\n[red]Warning - no files were successfully processed!\n")
	default:
		out.Printf("\n[red]Warning - not all files were successfully processed!\n")
	}
	return errIncomplete
}

// applyFlags overrides settings from the configuration file with the
// flags given on the command line.
func applyFlags(cmd *cobra.Command, s *config.Settings) error {
	flags := cmd.Flags()
	if flags.Changed("source") {
		s.SourceFolder = sourceFolder
	}
	if flags.Changed("output") {
		s.OutputFolder = outputFolder
	}
	if flags.Changed("user-password") {
		s.UserPassword = userPassword
	}
	if flags.Changed("owner-password") {
		s.OwnerPassword = ownerPassword
	}
	if flags.Changed("source-password") {
		s.SourcePassword = sourcePassword
	}
	if flags.Changed("delete-source") {
		s.DeleteSourceFile = deleteSource
	}
	if flags.Changed("workers") {
		if workers < 0 {
			return fmt.Errorf("invalid number of workers %d", workers)
		}
		s.Workers = workers
	}
	if askSourcePassword {
		passwd, err := readPassword("Source password: ")
		if err != nil {
			return err
		}
		s.SourcePassword = passwd
	}
	return nil
}

// readPassword reads a password from the terminal without echoing it.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("cannot read password: standard input is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	passwd, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(passwd), nil
}

func newLogger() *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// newProgressBar returns a progress bar on stderr, or nil if stderr is not
// a terminal or verbose logging is enabled.
func newProgressBar(n int) *progressbar.ProgressBar {
	if verbose || !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("protecting"),
		progressbar.OptionShowCount(),
		progressbar.OptionEnableColorCodes(useColor(os.Stderr)),
		progressbar.OptionClearOnFinish(),
	)
}

// console writes status messages.  Colour tags like "[red]" are
// interpreted by colorstring, or removed if colours are disabled.
type console struct {
	w     io.Writer
	color colorstring.Colorize
}

func newConsole(f *os.File) *console {
	return &console{
		w: f,
		color: colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: !useColor(f),
			Reset:   true,
		},
	}
}

func useColor(f *os.File) bool {
	return !noColor && term.IsTerminal(int(f.Fd()))
}

// Printf formats the message.  Only colour tags in the format string are
// interpreted.
func (c *console) Printf(format string, args ...any) {
	fmt.Fprintf(c.w, c.color.Color(format), args...)
}

// Result reports the outcome for one file, in the form
// "name... Created... Verified".
func (c *console) Result(res batch.Result) {
	var stageErr *protect.StageError
	switch {
	case res.OK():
		c.Printf("%s... Created... [green]Verified\n", res.Name)
	case errors.As(res.Err, &stageErr) && stageErr.Stage == protect.StageVerify:
		c.Printf("%s... Created... [red]Output file not verified! %v\n", res.Name, stageErr.Err)
	default:
		c.Printf("%s... [red]Error creating file! %v\n", res.Name, res.Err)
	}
}
