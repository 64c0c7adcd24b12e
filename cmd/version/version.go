package version

import (
	"fmt"
	"runtime"
	rtdebug "runtime/debug"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"terminus/internal/factory"
	"terminus/internal/update"
	"terminus/internal/util"
)

// set at build time via ldflags.
var version = "dev"
var repository = ""

var buildInfo, _ = rtdebug.ReadBuildInfo()

// Info is what self:info reports.
type Info struct {
	Version         string `json:"terminus_version"  yaml:"terminus_version"`
	GoVersion       string `json:"go_version"        yaml:"go_version"`
	OS              string `json:"os"                yaml:"os"`
	ConfigFile      string `json:"config_file"       yaml:"config_file"`
	CacheDir        string `json:"cache_dir"         yaml:"cache_dir"`
	PluginsDir      string `json:"plugins_dir"       yaml:"plugins_dir"`
	DependenciesDir string `json:"dependencies_dir"  yaml:"dependencies_dir"`
	BackupDir       string `json:"backup_dir"        yaml:"backup_dir"`
	Repository      string `json:"repository"        yaml:"repository"`
}

// AddInfoCommand defines the self:info command.
func AddInfoCommand(rootCmd *cobra.Command, f *factory.Factory) {
	rootCmd.AddCommand(NewInfoCommand(f))
}

func NewInfoCommand(f *factory.Factory) *cobra.Command {
	var format string
	infoCmd := &cobra.Command{
		Use:     "self:info",
		Short:   "Displays the local Terminus configuration and version.",
		Aliases: []string{"self:version"},
		Long: heredoc.Doc(`
			Displays the Terminus version together with the configuration file
			and the directories plugins and their dependencies are installed in.
		`),
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			return util.ValidateFormat(format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			info := Info{
				Version:    GetVersion(),
				GoVersion:  strings.TrimPrefix(runtime.Version(), "go"),
				OS:         runtime.GOOS + "/" + runtime.GOARCH,
				Repository: "https://github.com/" + GetRepository(),
			}
			if cfg := f.Config; cfg != nil {
				info.ConfigFile = cfg.ConfigFile
				info.CacheDir = cfg.CacheDir
				info.PluginsDir = cfg.PluginsDir
				info.DependenciesDir = cfg.DependenciesDir
				info.BackupDir = cfg.BackupDir
			}

			out := cmd.OutOrStdout()
			if format != util.FormatTable {
				return util.WriteStructured(out, format, info)
			}
			table := uitable.New()
			table.MaxColWidth = 100
			table.AddRow("Terminus version:", info.Version)
			table.AddRow("Go version:", info.GoVersion)
			table.AddRow("Operating system:", info.OS)
			table.AddRow("Config file:", info.ConfigFile)
			table.AddRow("Cache directory:", info.CacheDir)
			table.AddRow("Plugins directory:", info.PluginsDir)
			table.AddRow("Dependencies directory:", info.DependenciesDir)
			table.AddRow("Backup directory:", info.BackupDir)
			table.AddRow("Source repository:", info.Repository)
			_, err := fmt.Fprintln(out, table)
			return err
		},
	}
	infoCmd.Flags().StringVar(&format, "format", util.FormatTable, "Output format: table, json or yaml")
	return infoCmd
}

// GetVersion returns the embedded version string.
func GetVersion() string {
	if version == "dev" && buildInfo != nil && buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
		return buildInfo.Main.Version
	}
	return version
}

// GetRepository returns the embedded repository slug (owner/repo).
func GetRepository() string {
	if repository != "" {
		return repository
	}
	if buildInfo != nil && buildInfo.Main.Path != "" {
		pathParts := strings.Split(buildInfo.Main.Path, "/")
		if len(pathParts) >= 3 && pathParts[0] == "github.com" {
			return fmt.Sprintf("%s/%s", pathParts[1], pathParts[2])
		}
	}
	return update.DefaultRepository
}
