package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"ticketdesk/internal/app"
	"ticketdesk/internal/files"
	"ticketdesk/internal/models"
	"ticketdesk/internal/notify"
	"ticketdesk/internal/scanner"
	"ticketdesk/internal/utils"
	"ticketdesk/internal/workflow"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cmd := flag.String("cmd", "list", "Command: create|list|scan|download")
	configPath := flag.String("config", "", "Config file (default ticketdesk.json)")
	serverFlag := flag.String("server", "", "Override backend base URL (e.g. http://localhost:5001)")
	outDir := flag.String("out", "", "Directory PDFs are saved into")
	name := flag.String("name", "", "Holder name (create)")
	email := flag.String("email", "", "Holder email (create)")
	event := flag.String("event", "", "Event name (create)")
	ticketID := flag.Int("id", 0, "Ticket ID (download)")
	frames := flag.String("frames", "", "Directory a capture process drops camera frames into (scan)")
	camera := flag.String("camera", "", "IP camera snapshot URL (scan)")
	scanTimeout := flag.Duration("scan-timeout", 2*time.Minute, "Give up scanning after this long")
	asJSON := flag.Bool("json", false, "Print the ticket list as JSON (list)")
	flag.Parse()

	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		return fail(err)
	}
	if *serverFlag != "" {
		cfg.BackendURL = strings.TrimRight(*serverFlag, "/")
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}
	if err := cfg.Validate(); err != nil {
		return fail(err)
	}

	logger, err := utils.NewLogger(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return fail(err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier := notify.Multi{notify.Console{Out: os.Stdout}, notify.Log{Logger: logger}}
	deps, cleanup := app.Build(cfg, logger, notifier)
	defer cleanup()

	store, err := files.NewDownloadStore(cfg.OutputDir)
	if err != nil {
		return fail(err)
	}
	deps.Saver = store

	// Workflow errors have already reached the operator through the notifier.
	switch *cmd {
	case "create":
		return create(ctx, deps, models.TicketRequest{Name: *name, Email: *email, Event: *event})
	case "list":
		return list(ctx, deps, *asJSON)
	case "download":
		if *ticketID == 0 {
			return fail(fmt.Errorf("--id required"))
		}
		return download(ctx, deps, *ticketID)
	case "scan":
		src, err := frameSource(*frames, *camera)
		if err != nil {
			return fail(err)
		}
		opts := scanner.Options{Viewport: image.Pt(cfg.ScannerViewport, cfg.ScannerViewport), FPS: cfg.ScannerFPS}
		return scan(ctx, deps, scanner.New(src, opts, logger.WithField("component", "scanner")), *scanTimeout)
	default:
		return fail(fmt.Errorf("unknown command %q", *cmd))
	}
}

func create(ctx context.Context, deps workflow.Deps, draft models.TicketRequest) error {
	w := workflow.NewIssuance(deps)
	if err := w.SetDraft(draft); err != nil {
		return err
	}
	path, err := w.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Println("PDF guardado en", path)
	return nil
}

func list(ctx context.Context, deps workflow.Deps, asJSON bool) error {
	tickets, err := workflow.NewRedemption(deps).Load(ctx)
	if err != nil {
		return err
	}
	return printTickets(tickets, asJSON)
}

func printTickets(tickets []models.Ticket, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tickets)
	}
	if len(tickets) == 0 {
		fmt.Println("No hay entradas creadas aún.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNombre\tEmail\tEvento\tEstado")
	for _, t := range tickets {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Email, t.Event, t.Status)
	}
	return tw.Flush()
}

func download(ctx context.Context, deps workflow.Deps, id int) error {
	w := workflow.NewRedemption(deps)
	if _, err := w.Load(ctx); err != nil {
		return err
	}
	t, ok := w.Ticket(id)
	if !ok {
		err := fmt.Errorf("ticket %d not found", id)
		notify.Error(deps.Notifier, fmt.Sprintf("No existe el ticket %d", id))
		return err
	}
	path, err := w.Download(ctx, t)
	if err != nil {
		return err
	}
	fmt.Println("PDF guardado en", path)
	return nil
}

func scan(ctx context.Context, deps workflow.Deps, sc *scanner.Scanner, timeout time.Duration) error {
	w := workflow.NewRedemption(deps)
	if _, err := w.Load(ctx); err != nil {
		return err
	}
	results, err := w.StartScan(ctx, sc)
	if err != nil {
		return err
	}
	fmt.Println("Escaneando... (Ctrl+C para cancelar)")

	select {
	case res, ok := <-results:
		if !ok {
			return fmt.Errorf("scan ended without a code")
		}
		if res.Err != nil {
			return res.Err
		}
		return printTickets(w.Tickets(), false)
	case <-time.After(timeout):
		w.StopScan()
		notify.Error(deps.Notifier, "No se detectó ningún código QR")
		return fmt.Errorf("scan timed out")
	case <-ctx.Done():
		w.StopScan()
		return ctx.Err()
	}
}

func frameSource(dir, camera string) (scanner.FrameSource, error) {
	switch {
	case dir != "" && camera != "":
		return nil, fmt.Errorf("use either --frames or --camera, not both")
	case dir != "":
		return scanner.NewDirSource(dir), nil
	case camera != "":
		return scanner.NewSnapshotSource(camera, nil), nil
	default:
		return nil, fmt.Errorf("--frames or --camera required")
	}
}

func fail(err error) error {
	fmt.Fprintln(os.Stderr, "Error:", err)
	return err
}
