package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/z-wentao/ytscribe/pkg/models"
	"github.com/z-wentao/ytscribe/pkg/subtitles"
	"github.com/z-wentao/ytscribe/pkg/youtube"
)

func newResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <url>",
		Short: "解析视频链接，输出视频 ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := youtube.Resolve(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ref)
			return nil
		},
	}
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var (
		lang   string
		to     string
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "transcribe <url>",
		Short: "获取视频文本：优先字幕，没有字幕时语音识别",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat := strings.ToLower(format)
			if outFormat != "text" {
				if _, err := subtitles.ParseFormat(outFormat); err != nil {
					return err
				}
				if to != "" {
					return fmt.Errorf("--to 只能和 --format text 一起使用")
				}
			}

			svc, err := ctx.service()
			if err != nil {
				return err
			}
			progress := cmd.ErrOrStderr()
			var report func(models.JobStatus, int)
			if isTerminal(progress) {
				report = func(status models.JobStatus, pct int) {
					fmt.Fprintf(progress, "\r%-20s %3d%%", status, pct)
				}
			}
			result, err := svc.Transcribe(cmd.Context(), args[0], lang, report)
			if report != nil {
				if err == nil {
					report(models.StatusCompleted, 100)
				}
				fmt.Fprintln(progress)
			}
			if err != nil {
				return err
			}

			text := result.Text
			switch {
			case outFormat != "text":
				if len(result.Cues) == 0 {
					return fmt.Errorf("没有时间轴信息，无法生成 %s 字幕", outFormat)
				}
				f, _ := subtitles.ParseFormat(outFormat)
				text = subtitles.Render(f, result.Cues)
			case to != "":
				text, err = svc.Translate(cmd.Context(), result.Text, to, result.SourceLanguage)
				if err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "来源: %s  语言: %s\n", result.Origin, orUnknown(result.SourceLanguage))
			return writeOutput(cmd.OutOrStdout(), output, text)
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "首选字幕语言")
	cmd.Flags().StringVarP(&to, "to", "t", "", "翻译到的目标语言")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "输出格式: text | srt | vtt")
	cmd.Flags().StringVarP(&output, "output", "o", "", "输出文件（默认标准输出）")
	return cmd
}

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var to, from string
	cmd := &cobra.Command{
		Use:   "translate [text]",
		Short: "翻译文本；不给参数时从标准输入读取",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			svc, err := ctx.service()
			if err != nil {
				return err
			}
			translated, err := svc.Translate(cmd.Context(), text, to, from)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), translated)
			return nil
		},
	}
	cmd.Flags().StringVarP(&to, "to", "t", "", "目标语言（见 languages 命令）")
	cmd.Flags().StringVar(&from, "from", "", "源语言，默认自动检测")
	cmd.MarkFlagRequired("to")
	return cmd
}

func newDetectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "detect [text]",
		Short: "检测文本语言",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			svc, err := ctx.service()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), svc.DetectLanguage(cmd.Context(), text))
			return nil
		},
	}
}

func newLanguagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "列出支持翻译的语言",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service()
			if err != nil {
				return err
			}
			langs := svc.SupportedLanguages()
			rows := make([][]string, 0, len(langs))
			for _, l := range langs {
				rows = append(rows, []string{l.Code, l.Name})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Code", "Language"}, rows))
			return nil
		},
	}
}

func readText(in io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("读取标准输入失败: %w", err)
	}
	return string(data), nil
}

func writeOutput(stdout io.Writer, path, text string) error {
	if path == "" {
		_, err := fmt.Fprintln(stdout, text)
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("写入文件失败: %w", err)
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "未知"
	}
	return s
}
