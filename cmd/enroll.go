package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/constants"
	"github.com/kozaktomas/face-registry/internal/embedding"
	"github.com/kozaktomas/face-registry/internal/facematch"
	"github.com/kozaktomas/face-registry/internal/gallery"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <file|dir>...",
	Short: "Register face images from files or directories",
	Long: `Register every image found in the given files and directories.

The label is taken from --label or derived from the file name, so
"jan_novak-02.jpg" is enrolled as "jan novak". Images without a detectable
face are reported and skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("label", "", "Label for all images (defaults to the file name)")
	enrollCmd.Flags().Int("concurrency", constants.DefaultConcurrency, "Number of images embedded in parallel")
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// collectImages expands directories (recursively) into image files, keeping explicit files as given.
func collectImages(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(path))) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
	}
	return files, nil
}

type enrollFailure struct {
	path string
	err  error
}

func runEnroll(cmd *cobra.Command, args []string) error {
	label := mustGetString(cmd, "label")
	concurrency := mustGetInt(cmd, "concurrency")
	if concurrency < 1 {
		concurrency = 1
	}

	files, err := collectImages(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No images found")
		return nil
	}

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	provider, err := openProvider(ctx, cfg)
	if err != nil {
		return err
	}
	registry := gallery.NewRegistry(store, cfg.Match.Threshold)

	fmt.Printf("Images to enroll: %d\n\n", len(files))

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Enrolling faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	enrolled, failures, waitErr := enrollFiles(ctx, files, concurrency,
		func(ctx context.Context, path string) error {
			name := label
			if name == "" {
				name = facematch.LabelFromFilename(filepath.Base(path))
			}
			return enrollFile(ctx, registry, provider, path, name)
		},
		func() { _ = bar.Add(1) },
	)
	fmt.Println()

	for _, f := range failures {
		fmt.Printf("  FAILED %s: %v\n", f.path, f.err)
	}
	fmt.Printf("\nCompleted: %d enrolled, %d failed\n", enrolled, len(failures))

	if g, err := store.Load(ctx); err == nil {
		fmt.Printf("Total faces in gallery: %d\n", g.Len())
	}

	if waitErr != nil {
		return fmt.Errorf("enrollment interrupted: %w", waitErr)
	}
	return nil
}

// enrollFiles runs enroll for each file with at most concurrency calls in flight.
// Per-file errors are collected (sorted by path); only cancellation of ctx stops the batch,
// and files not yet started when that happens are skipped rather than reported as failures.
func enrollFiles(
	ctx context.Context, files []string, concurrency int,
	enroll func(ctx context.Context, path string) error, progress func(),
) (int, []enrollFailure, error) {
	var (
		mu       sync.Mutex
		failures []enrollFailure
		enrolled int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// g.Go may have waited for a free slot while the batch was cancelled.
			if err := gctx.Err(); err != nil {
				return err
			}
			defer progress()

			err := enroll(gctx, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, enrollFailure{path: path, err: err})
			} else {
				enrolled++
			}
			return gctx.Err()
		})
	}
	err := g.Wait()

	slices.SortFunc(failures, func(a, b enrollFailure) int { return strings.Compare(a.path, b.path) })
	return enrolled, failures, err
}

func enrollFile(ctx context.Context, registry *gallery.Registry, provider embedding.Provider, path, label string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	emb, err := provider.Embed(ctx, data)
	if err != nil {
		return err
	}
	_, err = registry.Register(ctx, label, emb)
	return err
}
