package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/api"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/asset"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/audit"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/auth"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/config"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/infra"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/logger"
	"github.com/ValueKare/Hospitalassetmanagementsystem-sub001/internal/session"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const (
	envFlagName    = "env"
	configFlagName = "config"
)

// deps 子命令共享的配置与数据库连接
type deps struct {
	cfg *config.Config
	db  *gorm.DB
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "auditctl",
		Short:         "医院资产盘点服务管理工具",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String(envFlagName, "", "环境名称，对应 config/<env>.yaml（默认读取 APP_ENV）")
	root.PersistentFlags().String(configFlagName, "", "配置文件路径，优先于 --env")

	root.AddCommand(newMigrateCommand(), newSeedAdminCommand(), newExportCommand())
	return root
}

// withRuntime 加载配置与数据库后执行 fn，结束时关闭连接
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *deps) error) error {
	_ = godotenv.Load()

	env, _ := cmd.Flags().GetString(envFlagName)
	if env == "" {
		env = os.Getenv("APP_ENV")
	}
	if env == "" {
		env = "dev"
	}
	path, _ := cmd.Flags().GetString(configFlagName)

	cfg, err := config.Load(env, path)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := infra.InitDatabase(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = infra.CloseDatabase() }()

	return fn(cmd.Context(), &deps{cfg: cfg, db: db})
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "创建或更新数据表",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(_ context.Context, rt *deps) error {
				if err := infra.AutoMigrate(rt.db, api.Models()...); err != nil {
					return err
				}
				cmd.Println("迁移完成")
				return nil
			})
		},
	}
}

func newSeedAdminCommand() *cobra.Command {
	var (
		hospitalID string
		username   string
		password   string
	)
	command := &cobra.Command{
		Use:   "seed-admin",
		Short: "创建管理员账号",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(password) < 8 {
				return errors.New("密码长度至少 8 位")
			}
			return withRuntime(cmd, func(ctx context.Context, rt *deps) error {
				user, err := auth.NewIdentityStore(rt.db).CreateUser(ctx, auth.CreateUserInput{
					HospitalID:  hospitalID,
					Username:    username,
					DisplayName: "Administrator",
					Password:    password,
					Roles:       []string{session.RoleAdmin},
				})
				if errors.Is(err, auth.ErrUserExists) {
					cmd.Printf("用户 %s 已存在，跳过\n", username)
					return nil
				}
				if err != nil {
					return err
				}
				cmd.Printf("已创建管理员 %s (%s)\n", user.Username, user.ID)
				return nil
			})
		},
	}
	command.Flags().StringVar(&hospitalID, "hospital", "", "所属医院 ID")
	command.Flags().StringVar(&username, "username", "admin", "用户名")
	command.Flags().StringVar(&password, "password", "", "初始密码")
	_ = command.MarkFlagRequired("hospital")
	_ = command.MarkFlagRequired("password")
	return command
}

func newExportCommand() *cobra.Command {
	var out string
	command := &cobra.Command{
		Use:   "export <auditId>",
		Short: "导出盘点报表",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *deps) error {
				svc := audit.NewService(rt.db, asset.NewRepository(rt.db), audit.WithLogger(logger.Get()))
				f, a, err := svc.ExportWorkbook(ctx, args[0])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()

				path := out
				if path == "" {
					if err := os.MkdirAll(rt.cfg.Audit.ReportDir, 0o755); err != nil {
						return fmt.Errorf("创建报表目录失败: %w", err)
					}
					path = filepath.Join(rt.cfg.Audit.ReportDir, fmt.Sprintf("audit_%s.xlsx", a.AuditCode))
				}
				if err := f.SaveAs(path); err != nil {
					return fmt.Errorf("保存报表失败: %w", err)
				}
				cmd.Printf("报表已导出: %s\n", path)
				return nil
			})
		},
	}
	command.Flags().StringVarP(&out, "out", "o", "", "输出文件路径，默认写入 audit.report_dir")
	return command
}
