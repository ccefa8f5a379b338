package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"unidrome/internal/publish"
)

var (
	publishDir    string
	publishPrefix string
	publishBucket string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload an output directory to S3-compatible object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := publish.NewClient(cfg.StorageEndpoint, cfg.StorageAccessKey, cfg.StorageSecretKey, cfg.StorageUseSSL)
		if err != nil {
			return err
		}
		dir := publishDir
		if dir == "" {
			dir = cfg.DataDir
		}
		bucket := cfg.StorageBucket
		if publishBucket != "" {
			bucket = publishBucket
		}
		p := &publish.Publisher{Store: client, Bucket: bucket, Prefix: publishPrefix, Logger: logger}
		n, err := p.Publish(cmd.Context(), dir)
		if err != nil {
			return err
		}
		logger.Info("Successfully uploaded to object storage", zap.String("bucket", bucket), zap.Int("objects", n))
		return nil
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishDir, "dir", "", "Directory to upload (default: the data directory)")
	publishCmd.Flags().StringVar(&publishPrefix, "prefix", "", "Key prefix inside the bucket")
	publishCmd.Flags().StringVar(&publishBucket, "bucket", "", "Bucket name (or set STORAGE_BUCKET)")
	rootCmd.AddCommand(publishCmd)
}
