package command

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"romkit/internal"
	"romkit/internal/pkg"
	"romkit/internal/rom"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app 在各子命令之间共享的运行状态
type app struct {
	configDir string
	romPath   string

	ctx      context.Context
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *pkg.Metrics
}

// NewRootCommand 创建根命令
func NewRootCommand() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "romkit",
		Short:         "Decode text and records from a ROM image",
		Long:          `romkit decodes table-encoded strings and fixed-width records from a ROM image using a text table and an offset table loaded from config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			pkg.LogMetrics(a.log, a.registry)
			_ = a.log.Sync()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configDir, "config", "c", "config", "配置文件目录")
	rootCmd.PersistentFlags().StringVarP(&a.romPath, "rom", "r", "", "ROM 镜像路径")

	rootCmd.AddCommand(
		newInfoCommand(a),
		newStringsCommand(a),
		newRecordsCommand(a),
		newEncodeCommand(a),
		newDecodeCommand(a),
	)
	return rootCmd
}

// init 1. 加载配置 2. 初始化log 3. 挂载到 context
func (a *app) init() error {
	config, _, err := pkg.InitCommon(a.configDir)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	a.log = pkg.NewLogger(&config.Log).With(zap.String("run_id", uuid.NewString()))
	a.log.Debug("配置信息", zap.String("version", config.Version), zap.Int("text_table", len(config.TextTable)))

	a.registry = prometheus.NewRegistry()
	a.metrics = pkg.NewMetrics(a.registry)

	ctx := pkg.WithConfig(context.Background(), config)
	a.ctx = pkg.WithLoggerAndModule(ctx, a.log, "romkit")
	return nil
}

// session 组装编解码组件, needImage 为 true 时读取 ROM 镜像
func (a *app) session(needImage bool) (*internal.Session, error) {
	var image []byte
	if needImage {
		if a.romPath == "" {
			return nil, fmt.Errorf("需要通过 --rom 指定镜像")
		}
		data, err := os.ReadFile(a.romPath)
		if err != nil {
			return nil, fmt.Errorf("读取镜像失败: %w", err)
		}
		image = data
	}
	return internal.NewSession(a.ctx, image, a.metrics)
}

func newInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the iNES mapper of the image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.romPath == "" {
				return fmt.Errorf("需要通过 --rom 指定镜像")
			}
			data, err := os.ReadFile(a.romPath)
			if err != nil {
				return fmt.Errorf("读取镜像失败: %w", err)
			}
			h, err := rom.Header(data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mapper: %d\nrandomized: %v\n", h.Mapper(), h.IsMMC3())
			return nil
		},
	}
}

func newStringsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "strings <field> <count>",
		Short: "Decode a table of null-terminated strings",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("count %q 无法转换为整数: %w", args[1], err)
			}
			s, err := a.session(true)
			if err != nil {
				return err
			}
			names, ok, err := s.Reader.ReadStringTable(args[0], count)
			if err != nil {
				return err
			}
			if !ok {
				a.log.Warn("字段不在偏移表中", zap.String("field", args[0]))
				return nil
			}
			for i, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i, name)
			}
			return nil
		},
	}
}

func newRecordsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "records <layout>",
		Short: "Decode a named record table with a configured layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(true)
			if err != nil {
				return err
			}
			l, err := s.Layout(args[0])
			if err != nil {
				return err
			}
			entries, ok, err := l.Read(s.Reader)
			if err != nil {
				return err
			}
			if !ok {
				a.log.Warn("布局引用的字段不在偏移表中", zap.String("layout", args[0]))
				return nil
			}
			fieldNames := l.FieldNames()
			for _, e := range entries {
				parts := make([]string, 0, len(fieldNames))
				for _, f := range fieldNames {
					parts = append(parts, fmt.Sprintf("%s=%v", f, e.Fields[f]))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", e.Name, strings.Join(parts, " "))
			}
			return nil
		},
	}
}

func newEncodeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "encode <text>",
		Short: "Encode text with the text table and print hex",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(false)
			if err != nil {
				return err
			}
			out, err := s.Table.Encode(args[0])
			if err != nil {
				a.metrics.IncError(pkg.ErrKindEncoding)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.ToUpper(hex.EncodeToString(out)))
			return nil
		},
	}
}

func newDecodeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode hex bytes with the text table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hex.DecodeString(strings.ReplaceAll(args[0], " ", ""))
			if err != nil {
				return fmt.Errorf("无效的十六进制输入: %w", err)
			}
			s, err := a.session(false)
			if err != nil {
				return err
			}
			text, err := s.Table.Decode(data)
			if err != nil {
				a.metrics.IncError(pkg.ErrKindToken)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}
