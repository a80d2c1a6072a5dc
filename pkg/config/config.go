package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "FASTSTART"

// Load 依次应用默认值、配置文件和环境变量。配置文件不存在时只使用默认值。
func Load(path string) (conf *FastStart, err error) {
	conf = &FastStart{}
	defaults.SetDefaults(conf)
	if path != "" {
		var content []byte
		content, err = os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			err = nil
		case err != nil:
			return nil, err
		default:
			if err = yaml.Unmarshal(content, conf); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err = ParseEnv(conf, EnvPrefix); err != nil {
		return nil, err
	}
	return
}

// ParseEnv 读取环境变量覆盖配置，变量名为前缀加上大写的字段路径，例如 FASTSTART_LOG_LEVEL
func ParseEnv(target any, prefix ...string) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config target must be a struct pointer, got %T", target)
	}
	return parseEnv(v.Elem(), prefix)
}

func parseEnv(v reflect.Value, prefix []string) error {
	t := v.Type()
	for i, j := 0, t.NumField(); i < j; i++ {
		ft, fv := t.Field(i), v.Field(i)
		if !ft.IsExported() || ft.Tag.Get("yaml") == "-" {
			continue
		}
		name := append(prefix[:len(prefix):len(prefix)], strings.ToUpper(ft.Name))
		if ft.Type.Kind() == reflect.Struct {
			if err := parseEnv(fv, name); err != nil {
				return err
			}
			continue
		}
		key := strings.Join(name, "_")
		if envValue := os.Getenv(key); envValue != "" {
			if err := assign(fv, envValue); err != nil {
				return fmt.Errorf("env %s: %w", key, err)
			}
		}
	}
	return nil
}

func assign(target reflect.Value, value string) error {
	tmp := reflect.New(target.Type())
	if err := yaml.Unmarshal([]byte(value), tmp.Interface()); err != nil {
		return err
	}
	target.Set(tmp.Elem())
	return nil
}
