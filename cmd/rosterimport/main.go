package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"rosterimport/internal"
	"rosterimport/internal/config"
	"rosterimport/internal/connectors"
	"rosterimport/internal/importer"
	"rosterimport/internal/listener"
	"rosterimport/internal/logging"
	"rosterimport/internal/pipeline"
	"rosterimport/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log := logging.Init("rosterimport", cfg.LogEnv)
	defer log.SafeSync()

	cmd := "parse"
	args := []string{}
	if len(os.Args) > 1 {
		cmd = os.Args[1]
		args = os.Args[2:]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "parse":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		inType := fs.String("type", cfg.InputType, "embedded|markdown|email|html|pdf|xlsx")
		input := fs.String("input", cfg.InputPath, "input file path, - for stdin")
		out := fs.String("out", cfg.OutputPath, "output json path")
		xlsxOut := fs.String("xlsx", cfg.XLSXOutputPath, "optional xlsx copy of the output")
		_ = fs.Parse(args)

		records, err := pipeline.ExtractRecordsFromInput(internal.InputType(*inType), *input, pipeline.OptionsFromConfig(cfg))
		must(err)
		must(pipeline.ExportRecordsToJSON(records, *out))
		if strings.TrimSpace(*xlsxOut) != "" {
			must(pipeline.ExportRecordsToXLSX(records, *xlsxOut))
		}
		log.Debugw("records written", "type", *inType, "out", *out, "count", len(records))
		fmt.Printf("Parsed %d students.\n", len(records))
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		in := fs.String("in", cfg.OutputPath, "records json path")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(args)
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		records, err := pipeline.ReadRecordsJSON(*in)
		must(err)
		must(pipeline.ExportRecordsToXLSX(records, *out))
		fmt.Printf("exported %d records to %s\n", len(records), *out)
	case "db:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		in := fs.String("in", cfg.OutputPath, "records json path")
		_ = fs.Parse(args)
		records, err := pipeline.ReadRecordsJSON(*in)
		must(err)

		db := openDB(cfg)
		defer db.Close()
		res, err := importer.NewService(db, cfg, log).Import(ctx, "json", nil, records)
		must(err)
		printImport(res)
	case "db:list":
		db := openDB(cfg)
		defer db.Close()
		students, err := db.ListStudents()
		must(err)
		for _, s := range students {
			fmt.Printf("%d\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.GroupLabel, s.Username, s.Name, s.Email, s.ParticipantNumber)
		}
		classes, err := db.ListClasses()
		must(err)
		runs, err := db.CountRuns()
		must(err)
		lastImport, err := db.GetMetadata(importer.MetadataLastImport)
		must(err)
		last := "never"
		if lastImport != nil {
			last = *lastImport
		}
		fmt.Printf("%d students in %d classes, %d runs, last import %s\n", len(students), len(classes), runs, last)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(args)
		conn, err := listener.NewConnector(cfg, *provider)
		must(err)

		db := openDB(cfg)
		defer db.Close()
		result, err := connectors.NewFetchService(db, cfg.RawMailDir, conn).FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d duplicates=%d\n", *provider, result.Fetched, result.Stored, result.Duplicates)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(args)

		db := openDB(cfg)
		defer db.Close()
		processor := importer.NewProcessingService(db, cfg, log)
		if strings.TrimSpace(*messageID) != "" {
			res, err := processor.ProcessByProviderMessageID(ctx, *provider, *messageID)
			must(err)
			fmt.Printf("processed email id=%d skipped=%t records=%d\n", res.EmailID, res.Skipped, len(res.Records))
			return
		}
		results, err := processor.ProcessPending(ctx, *batch, *provider)
		must(err)
		records, failed := 0, 0
		for _, r := range results {
			records += len(r.Records)
			if r.Failed {
				failed++
			}
		}
		fmt.Printf("processed pending emails=%d failed=%d records=%d\n", len(results), failed, records)
	case "mail:listen":
		db := openDB(cfg)
		defer db.Close()
		must(listener.NewService(db, cfg, log).Run(ctx))
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		inType := fs.String("type", cfg.InputType, "embedded|markdown|email|html|pdf|xlsx")
		input := fs.String("input", cfg.InputPath, "input file path, - for stdin")
		out := fs.String("out", cfg.OutputPath, "output json path")
		_ = fs.Parse(args)

		records, err := pipeline.ExtractRecordsFromInput(internal.InputType(*inType), *input, pipeline.OptionsFromConfig(cfg))
		must(err)
		must(pipeline.ExportRecordsToJSON(records, *out))
		fmt.Printf("Parsed %d students.\n", len(records))

		db := openDB(cfg)
		defer db.Close()
		res, err := importer.NewService(db, cfg, log).Import(ctx, string(*inType), nil, records)
		must(err)
		printImport(res)
	default:
		usage()
		os.Exit(1)
	}
}

func openDB(cfg config.Config) *storage.DB {
	db, err := storage.Open(cfg.DBPath)
	must(err)
	return db
}

func printImport(res importer.Result) {
	fmt.Printf("import done classes=%d created=%d updated=%d failed=%d\n", res.Classes, res.Created, res.Updated, res.Failed)
}

func usage() {
	fmt.Println("usage: rosterimport [command]")
	fmt.Println("commands:")
	fmt.Println("  parse [--type=embedded|markdown|email|html|pdf|xlsx] [--input=...] [--out=students_data.json] [--xlsx=...]  (default)")
	fmt.Println("  export:xlsx --in=students_data.json --out=./out/students.xlsx")
	fmt.Println("  db:import --in=students_data.json")
	fmt.Println("  db:list")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=gmail|imap [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  run --type=... --input=... --out=students_data.json")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
