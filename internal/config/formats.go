package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// settingsFile mirrors .astra-settings/settings.toml
type settingsFile struct {
	Sftp struct {
		Host           string `mapstructure:"host"`
		Port           int    `mapstructure:"port"`
		Username       string `mapstructure:"username"`
		Password       string `mapstructure:"password"`
		PrivateKeyPath string `mapstructure:"private_key_path"`
		RemotePath     string `mapstructure:"remote_path"`
		LocalPath      string `mapstructure:"local_path"`
	} `mapstructure:"sftp"`
	Language string `mapstructure:"language"`
}

// editorFile mirrors the .vscode/sftp.json layout used by the VS Code SFTP extension.
type editorFile struct {
	Name           string `mapstructure:"name"`
	Host           string `mapstructure:"host"`
	Protocol       string `mapstructure:"protocol"`
	Port           int    `mapstructure:"port"`
	Secure         bool   `mapstructure:"secure"`
	Username       string `mapstructure:"username"`
	RemotePath     string `mapstructure:"remotePath"`
	Password       string `mapstructure:"password"`
	PrivateKeyPath string `mapstructure:"privateKeyPath"`
	UploadOnSave   bool   `mapstructure:"uploadOnSave"`
}

// legacyFile mirrors the flat astra.json layout.
type legacyFile struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	PrivateKeyPath string `mapstructure:"private_key_path"`
	RemotePath     string `mapstructure:"remote_path"`
	LocalPath      string `mapstructure:"local_path"`
	Language       string `mapstructure:"language"`
}

var (
	settingsRequired = []string{"sftp.host", "sftp.username", "sftp.remote_path"}
	editorRequired   = []string{"name", "host", "protocol", "port", "username", "remotePath"}
	legacyRequired   = []string{"host", "port", "username", "remote_path", "local_path"}
)

// readFile loads path with viper. A missing file is reported as fs.ErrNotExist so the
// cascade can move on without treating it as a parse failure.
func readFile(afs afero.Fs, path string, format Format, configType string) (*viper.Viper, error) {
	info, err := afs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, fs.ErrNotExist)
		}
		return nil, &ParseError{Path: path, Format: format, Err: err}
	}
	if info.IsDir() {
		return nil, &ParseError{Path: path, Format: format, Err: errors.New("is a directory")}
	}

	v := viper.New()
	v.SetFs(afs)
	v.SetConfigFile(path)
	v.SetConfigType(configType)
	if err := v.ReadInConfig(); err != nil {
		return nil, &ParseError{Path: path, Format: format, Err: err}
	}
	return v, nil
}

func requireKeys(v *viper.Viper, keys []string) error {
	var missing []string
	for _, key := range keys {
		if !v.IsSet(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// parseSettings reads the native TOML format. local_path defaults to the working directory.
func parseSettings(afs afero.Fs, path, workDir string) (*Config, error) {
	v, err := readFile(afs, path, FormatSettings, "toml")
	if err != nil {
		return nil, err
	}
	v.SetDefault("sftp.port", DefaultPort)

	if err := requireKeys(v, settingsRequired); err != nil {
		return nil, &ParseError{Path: path, Format: FormatSettings, Err: err}
	}

	var raw settingsFile
	if err := v.Unmarshal(&raw); err != nil {
		return nil, &ParseError{Path: path, Format: FormatSettings, Err: err}
	}

	lang, err := ParseLanguage(raw.Language)
	if err != nil {
		return nil, &ParseError{Path: path, Format: FormatSettings, Err: err}
	}

	cfg := &Config{
		Host:           raw.Sftp.Host,
		Port:           raw.Sftp.Port,
		Username:       raw.Sftp.Username,
		Password:       raw.Sftp.Password,
		PrivateKeyPath: raw.Sftp.PrivateKeyPath,
		RemotePath:     raw.Sftp.RemotePath,
		LocalPath:      raw.Sftp.LocalPath,
		Language:       lang,
		Protocol:       ProtocolSFTP,
		Source:         path,
		Format:         FormatSettings,
	}
	if cfg.LocalPath == "" {
		cfg.LocalPath = workDir
	}
	return cfg, nil
}

// parseEditor reads the editor-extension JSON format. Only sftp and ftp endpoints are
// accepted; the local root is always the working directory.
func parseEditor(afs afero.Fs, path, workDir string) (*Config, error) {
	v, err := readFile(afs, path, FormatEditor, "json")
	if err != nil {
		return nil, err
	}

	if err := requireKeys(v, editorRequired); err != nil {
		return nil, &ParseError{Path: path, Format: FormatEditor, Err: err}
	}

	var raw editorFile
	if err := v.Unmarshal(&raw); err != nil {
		return nil, &ParseError{Path: path, Format: FormatEditor, Err: err}
	}

	protocol := strings.ToLower(raw.Protocol)
	if protocol != ProtocolSFTP && protocol != ProtocolFTP {
		return nil, fmt.Errorf("%w %q in %s", ErrUnsupportedProtocol, raw.Protocol, path)
	}

	return &Config{
		Name:           raw.Name,
		Host:           raw.Host,
		Port:           raw.Port,
		Username:       raw.Username,
		Password:       raw.Password,
		PrivateKeyPath: raw.PrivateKeyPath,
		RemotePath:     raw.RemotePath,
		LocalPath:      workDir,
		Protocol:       protocol,
		UploadOnSave:   raw.UploadOnSave,
		Source:         path,
		Format:         FormatEditor,
	}, nil
}

// parseLegacy reads the flat astra.json format.
func parseLegacy(afs afero.Fs, path string) (*Config, error) {
	v, err := readFile(afs, path, FormatLegacy, "json")
	if err != nil {
		return nil, err
	}

	if err := requireKeys(v, legacyRequired); err != nil {
		return nil, &ParseError{Path: path, Format: FormatLegacy, Err: err}
	}

	var raw legacyFile
	if err := v.Unmarshal(&raw); err != nil {
		return nil, &ParseError{Path: path, Format: FormatLegacy, Err: err}
	}

	lang, err := ParseLanguage(raw.Language)
	if err != nil {
		return nil, &ParseError{Path: path, Format: FormatLegacy, Err: err}
	}

	return &Config{
		Host:           raw.Host,
		Port:           raw.Port,
		Username:       raw.Username,
		Password:       raw.Password,
		PrivateKeyPath: raw.PrivateKeyPath,
		RemotePath:     raw.RemotePath,
		LocalPath:      raw.LocalPath,
		Language:       lang,
		Protocol:       ProtocolSFTP,
		Source:         path,
		Format:         FormatLegacy,
	}, nil
}
