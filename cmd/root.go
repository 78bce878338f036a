package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-registry",
	Short: "Enroll and recognize faces over HTTP",
	Long: `Face Registry keeps a gallery of labeled face embeddings and answers
"who is this?" for uploaded photos. Embeddings are computed by an InsightFace
embedding server; the gallery lives in a local file, MinIO/S3, PostgreSQL
(pgvector) or MariaDB.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
