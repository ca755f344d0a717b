// Command karatrack-render renders a karaoke video from local files, without
// the API, queue or bucket.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/yungbote/karatrack-backend/internal/domain"
	"github.com/yungbote/karatrack-backend/internal/lyrics"
	karaokemod "github.com/yungbote/karatrack-backend/internal/modules/karaoke"
	"github.com/yungbote/karatrack-backend/internal/platform/localmedia"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
	"github.com/yungbote/karatrack-backend/internal/render"
	"github.com/yungbote/karatrack-backend/internal/video"
)

type options struct {
	audioPath   string
	lyricsPath  string
	outPath     string
	presetsPath string
	fontPath    string
	workRoot    string
	padIntro    bool
	concurrency int
	debug       bool

	pres domain.Presentation
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "karatrack-render",
		Short: "Render a karaoke video from a local audio file and word timeline",
		Long: `karatrack-render draws lyric frames for a word-timed timeline and muxes
them with an audio file using ffmpeg.

The lyrics file is either a JSON array of {"word","start","end"} entries or a
render job body with a "lyrics" field; presentation fields in a job body are
used unless overridden by flags.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.audioPath, "audio", "a", "", "audio file (required)")
	f.StringVarP(&o.lyricsPath, "lyrics", "l", "", "timeline JSON file (required)")
	f.StringVarP(&o.outPath, "out", "o", "karaoke.mp4", "output video path")
	f.StringVar(&o.presetsPath, "presets", "", "style presets YAML")
	f.StringVar(&o.fontPath, "font", "", "custom TTF registered as the custom family")
	f.StringVar(&o.workRoot, "work-dir", "", "scratch directory root")
	f.BoolVar(&o.padIntro, "pad-intro", true, "prepend intro silence to the audio")
	f.IntVar(&o.concurrency, "concurrency", 4, "frame render workers")
	f.BoolVar(&o.debug, "debug", false, "verbose logging")

	f.StringVar(&o.pres.DisplayMode, "mode", "", "display mode: auto, scroll, page, overwrite")
	f.StringVar(&o.pres.VideoQuality, "quality", "", "720p, 1080p or 4k")
	f.StringVar(&o.pres.Style.Preset, "style", "", "style preset name")
	f.StringVar(&o.pres.Title, "title", "", "song title")
	f.StringVar(&o.pres.Artist, "artist", "", "artist name")
	f.StringVar(&o.pres.Number, "track", "", "track number")
	f.BoolVar(&o.pres.CleanVersion, "clean", false, "mask profanity")
	_ = cmd.MarkFlagRequired("audio")
	_ = cmd.MarkFlagRequired("lyrics")
	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, o *options) error {
	log := logger.Nop()
	if o.debug {
		l, err := logger.New("development")
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer l.Sync()
		log = l
	}

	tl, pres, err := readLyrics(o.lyricsPath)
	if err != nil {
		return err
	}
	pres = mergePresentation(pres, o.pres, cmd)

	presets, err := render.LoadStylePresets(o.presetsPath)
	if err != nil {
		return err
	}
	fonts, err := render.LoadFonts(o.fontPath)
	if err != nil {
		return err
	}
	media := localmedia.New(log)
	if err := media.AssertReady(ctx); err != nil {
		return err
	}
	uc := karaokemod.New(karaokemod.UsecasesDeps{
		Log:       log,
		Media:     media,
		Assembler: video.NewAssembler(log, media, o.concurrency),
		Fonts:     fonts,
		Layout:    render.DefaultLayout(),
		Presets:   presets,
		Profanity: lyrics.NewProfanityFilter(),
		WorkRoot:  o.workRoot,
	})

	tl = tl.Sorted()
	if err := tl.Validate(); err != nil {
		return fmt.Errorf("lyrics: %w", err)
	}
	if pres.CleanVersion {
		tl = uc.CleanLyrics(tl)
	}

	workDir, cleanup, err := uc.WorkDir("cli")
	if err != nil {
		return err
	}
	defer cleanup()

	var (
		audio        = o.audioPath
		songDuration float64
	)
	if o.padIntro {
		if audio, songDuration, err = uc.PadForIntro(ctx, audio, workDir); err != nil {
			return err
		}
	} else {
		total, err := uc.Probe(ctx, audio)
		if err != nil {
			return err
		}
		songDuration = max(0, total-uc.IntroDuration())
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Rendering"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	out, err := uc.Render(ctx, karaokemod.RenderInput{
		Timeline:     tl,
		AudioPath:    audio,
		SongDuration: songDuration,
		Presentation: pres,
		WorkDir:      workDir,
		Progress: func(stage string, pct int, msg string) {
			bar.Describe(msg)
			_ = bar.Set(pct)
		},
		ProgressFrom: 0,
		ProgressTo:   100,
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(o.outPath), 0o755); err != nil {
		return err
	}
	if err := moveFile(out.VideoPath, o.outPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d %s, %d frames, %.2fs, mode=%s\n",
		o.outPath, out.Width, out.Height, out.Quality, out.Frames, out.DurationSec, out.Mode)
	return nil
}

func readLyrics(path string) (lyrics.Timeline, domain.Presentation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.Presentation{}, fmt.Errorf("read lyrics: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var tl lyrics.Timeline
		if err := json.Unmarshal(raw, &tl); err != nil {
			return nil, domain.Presentation{}, fmt.Errorf("parse lyrics: %w", err)
		}
		return tl, domain.Presentation{}, nil
	}
	var req domain.RenderRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, domain.Presentation{}, fmt.Errorf("parse render body: %w", err)
	}
	return req.Lyrics, req.Presentation, nil
}

// mergePresentation applies only the flags the user set.
func mergePresentation(base, flags domain.Presentation, cmd *cobra.Command) domain.Presentation {
	set := cmd.Flags().Changed
	if set("mode") {
		base.DisplayMode = flags.DisplayMode
	}
	if set("quality") {
		base.VideoQuality = flags.VideoQuality
	}
	if set("style") {
		base.Style.Preset = flags.Style.Preset
	}
	if set("title") {
		base.Title = flags.Title
	}
	if set("artist") {
		base.Artist = flags.Artist
	}
	if set("track") {
		base.Number = flags.Number
	}
	if set("clean") {
		base.CleanVersion = flags.CleanVersion
	}
	return base
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
