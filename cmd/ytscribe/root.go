package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ytscribe",
		Short:         "YouTube 视频转文字与翻译",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "配置文件路径（默认 $YTSCRIBE_CONFIG 或 config.yaml）")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "输出调试日志")

	rootCmd.AddCommand(newResolveCommand())
	rootCmd.AddCommand(newTranscribeCommand(ctx))
	rootCmd.AddCommand(newTranslateCommand(ctx))
	rootCmd.AddCommand(newDetectCommand(ctx))
	rootCmd.AddCommand(newLanguagesCommand(ctx))
	return rootCmd
}
