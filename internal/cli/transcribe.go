package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
	"transcript-tool/internal/services"
)

var (
	sourceLang string
	targetLang string
	sessionID  string
	exportPath string
	quiet      bool
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file-or-url>",
	Short: "Transcribe a local video or a supported URL and print the transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runTranscribe(ctx, cmd, args[0])
	},
}

func init() {
	transcribeCmd.Flags().StringVarP(&sourceLang, "source", "s", models.AutoDetect, "spoken language, or auto-detect")
	transcribeCmd.Flags().StringVarP(&targetLang, "target", "t", "English", "language of the transcript")
	transcribeCmd.Flags().StringVar(&sessionID, "session", "", "existing session to attach the transcript to")
	transcribeCmd.Flags().StringVarP(&exportPath, "export", "e", "", "also write the transcript to this .docx or .txt file")
	transcribeCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not draw the progress bar")
}

func runTranscribe(ctx context.Context, cmd *cobra.Command, ref string) error {
	src, closeSrc, err := buildSource(ref)
	if err != nil {
		return err
	}
	defer closeSrc()

	core, closeFn, err := openCore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	if sessionID == "" {
		sessionID = models.NewSessionID()
		if err := core.Sessions.Create(ctx, sessionID); err != nil {
			return err
		}
	} else {
		exists, err := core.Sessions.Exists(ctx, sessionID)
		if err != nil {
			return err
		}
		if !exists {
			return apperrors.Newf(apperrors.KindNotFound, "session %s not found", sessionID)
		}
	}

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "%s %s (%s) session %s\n", infoStyle.Render("→"), src.Reference, src.Kind, sessionID)

	var sink services.ProgressSink
	view := newProgressView(stderr)
	if !quiet {
		sink = view.Sink
	}
	req := models.NewTranscriptionRequest(sessionID, src, sourceLang, targetLang)
	record, err := core.Transcriber.Run(ctx, req, sink)
	view.Finish()
	if err != nil {
		return fmt.Errorf("%s", apperrors.UserMessage(err))
	}

	fmt.Fprintf(stderr, "%s transcript %s (%d attempt(s))\n", doneStyle.Render("✓"), record.ID, req.Attempts())
	fmt.Fprintln(cmd.OutOrStdout(), record.Text)

	if exportPath == "" {
		return nil
	}
	body, _, err := services.RenderDocument(record.Text, services.DocumentMeta{
		VideoName:      record.VideoName,
		SourceLanguage: record.SourceLanguage,
		TargetLanguage: record.TargetLanguage,
		CreatedAt:      record.CreatedAt,
	}, exportFormat(exportPath))
	if err != nil {
		return err
	}
	if err := os.WriteFile(exportPath, body, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportPath, err)
	}
	fmt.Fprintf(stderr, "%s exported to %s\n", doneStyle.Render("✓"), exportPath)
	return nil
}

// buildSource classifies ref and, for local files, opens the content.
func buildSource(ref string) (models.VideoSource, func(), error) {
	noop := func() {}
	kind := services.Classify(ref)
	switch kind {
	case models.SourceUnrecognized:
		return models.VideoSource{}, noop, apperrors.Newf(apperrors.KindUnrecognizedSource, "unsupported source %q", ref)
	case models.SourceUpload:
		f, err := os.Open(ref)
		if err != nil {
			return models.VideoSource{}, noop, apperrors.Wrap(err, apperrors.KindInvalidArgument, "cannot open "+ref)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return models.VideoSource{}, noop, apperrors.Wrap(err, apperrors.KindInvalidArgument, "cannot stat "+ref)
		}
		if info.IsDir() {
			f.Close()
			return models.VideoSource{}, noop, apperrors.Newf(apperrors.KindInvalidArgument, "%s is a directory", ref)
		}
		return models.VideoSource{
			Kind:      kind,
			Reference: filepath.Base(ref),
			FileName:  filepath.Base(ref),
			SizeBytes: info.Size(),
			Content:   f,
		}, func() { f.Close() }, nil
	}
	return models.VideoSource{Kind: kind, Reference: ref}, noop, nil
}

func exportFormat(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		return services.FormatTXT
	}
	return services.FormatDOCX
}
