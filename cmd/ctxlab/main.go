// Package main 提供 ctxlab 命令行入口
//
// ctxlab 评估不同的上下文组装策略，并对评估结果自动评分。
//
// # 基本用法
//
// 文档 token 统计与预算分析：
//
//	ctxlab tokens --token-limit 2000
//
// 按策略组装一次上下文：
//
//	ctxlab assemble --query "What is context rot?" --strategy sandwich
//
// 运行完整评估并写出结果文件：
//
//	ctxlab evaluate --config ctxlab.yaml
//
// 对结果评分，PASS 退出码为 0，FAIL 为 1：
//
//	ctxlab verify
//
// # 环境变量
//
// 所有配置项都可以用 CTXLAB_ 前缀的环境变量覆盖，双下划线表示层级：
//
//   - CTXLAB_CONFIG: 配置文件路径
//   - CTXLAB_LLM__API_KEY: 生成服务 API 密钥
//   - CTXLAB_LLM__MODEL: 生成模型
//   - CTXLAB_EMBEDDING__PROVIDER: 嵌入服务提供商，未设置时与生成服务一致
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// 构建信息，由 ldflags 注入
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errVerificationFailed 验证未通过；退出码为 1，报告已经输出，不再重复记录
var errVerificationFailed = errors.New("verification failed")

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errVerificationFailed) {
			slog.Error("command execution failed", "error", err)
		}
		os.Exit(1)
	}
}

// rootOptions 所有子命令共享的选项
type rootOptions struct {
	configPath string
}

// buildRootCmd 创建根命令并挂载全部子命令
func buildRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "ctxlab",
		Short: "Context engineering lab: assemble, evaluate and grade context strategies",
		Long: `ctxlab compares context assembly strategies under a fixed token budget.

Baseline strategies: naive, primacy, recency, sandwich
Optimization strategies: hierarchical_summary, semantic_chunking, dynamic_allocation`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("CTXLAB_CONFIG"),
		"Path to YAML or JSON configuration file")

	rootCmd.AddCommand(
		buildEvaluateCmd(opts),
		buildVerifyCmd(opts),
		buildAssembleCmd(opts),
		buildTokensCmd(opts),
		buildVersionCmd(),
	)
	return rootCmd
}

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "ctxlab "+versionString())
		},
	}
}
