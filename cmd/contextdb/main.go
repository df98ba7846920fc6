package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/contextdb/contextdb"
	"github.com/contextdb/contextdb/internal/config"
)

var (
	configFile string
	dbPath     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "contextdb",
	Short: "CLI for the contextdb expression/meaning store",
	Long:  `A command-line interface for storing text expressions with embedding vectors and querying them by semantic similarity or substring.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.SetOutput(os.Stderr)
		log.SetReportTimestamp(false)
		if verbose {
			log.SetLevel(log.DebugLevel)
		}

		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if dbPath == "" {
			dbPath = cfg.Database.Path
		}
		if !verbose {
			if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
				log.SetLevel(level)
			}
		}
		return nil
	},
	SilenceUsage: true,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty store at the configured path",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		if err := db.Close(); err != nil {
			return err
		}

		log.Info("store initialized", "path", dbPath)
		return nil
	},
}

var insertCmd = &cobra.Command{
	Use:   "insert <expression>",
	Short: "Insert an expression with its meaning vector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		meaning, err := parseVector(vectorStr)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := db.Insert(context.Background(), args[0], meaning)
		if err != nil {
			return fmt.Errorf("failed to insert: %w", err)
		}

		log.Debug("inserted", "id", id, "dimension", len(meaning))
		fmt.Println(id)
		return nil
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of stored records",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		count, err := db.Count(context.Background())
		if err != nil {
			return err
		}

		fmt.Println(count)
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search by meaning vector similarity",
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		threshold, _ := cmd.Flags().GetFloat32("threshold")
		limit, _ := cmd.Flags().GetInt("limit")

		meaning, err := parseVector(vectorStr)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		results, err := db.QueryMeaning(context.Background(), meaning, threshold, limit)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}

		printResults(results)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <substring>",
	Short: "Search expression text for a substring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		results, err := db.QueryExpressionContains(context.Background(), args[0], limit)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		printResults(results)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a record by identifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		entry, err := db.Get(context.Background(), id)
		if err != nil {
			return err
		}

		fmt.Printf("id:         %s\n", entry.ID)
		fmt.Printf("expression: %s\n", entry.Expression)
		fmt.Printf("dimension:  %d\n", len(entry.Meaning))
		fmt.Printf("created:    %s\n", entry.CreatedAt.Format("2006-01-02 15:04:05"))
		if len(entry.Context) > 0 {
			fmt.Printf("context:    %s\n", entry.Context)
		}
		for _, rel := range entry.Relations {
			fmt.Printf("relation:   %s\n", rel)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a record by identifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Delete(context.Background(), id); err != nil {
			return err
		}

		log.Info("deleted", "id", id)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		count, err := db.Count(context.Background())
		if err != nil {
			return err
		}

		fmt.Printf("path:      %s\n", dbPath)
		fmt.Printf("records:   %d\n", count)
		fmt.Printf("dimension: %d\n", db.Dimension())
		return nil
	},
}

func openDB() (*contextdb.DB, error) {
	db, err := contextdb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", dbPath, err)
	}
	return db, nil
}

func parseVector(vectorStr string) ([]float32, error) {
	if vectorStr == "" {
		return nil, fmt.Errorf("vector is required (comma-separated floats)")
	}

	parts := strings.Split(vectorStr, ",")
	vector := make([]float32, 0, len(parts))
	for _, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", part, err)
		}
		vector = append(vector, float32(val))
	}

	return vector, nil
}

func printResults(results []contextdb.Result) {
	if len(results) == 0 {
		log.Info("no matches")
		return
	}
	for _, result := range results {
		fmt.Printf("%s\t%.4f\t%s\n", result.UUID(), result.Score, result.Expression)
	}
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	insertCmd.Flags().String("vector", "", "comma-separated meaning vector (required)")
	queryCmd.Flags().String("vector", "", "comma-separated query vector (required)")
	queryCmd.Flags().Float32("threshold", -1, "minimum similarity score (negative disables)")
	queryCmd.Flags().Int("limit", 10, "maximum results (0 = unlimited)")
	searchCmd.Flags().Int("limit", 10, "maximum results (0 = unlimited)")

	rootCmd.AddCommand(initCmd, insertCmd, countCmd, queryCmd, searchCmd, getCmd, deleteCmd, statsCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
