package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// CheckVersion prints the version and exits when --version was passed.
func CheckVersion(version string) {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" {
			fmt.Println(version)
			os.Exit(0)
		}
	}
}

type fieldInfo struct {
	field        reflect.Value
	name         string
	aliases      []string
	help         string
	isRequired   bool
	defaultValue string
}

type LoadOptions struct {
	ConfigFlag     string
	DefaultConfig  string
	StrictINI      bool
	SkipAutoConfig bool
}

// Load fills cfg (a pointer to a struct) from defaults, an optional ini
// file, and command-line flags, in that precedence order. Field naming
// and defaults come from struct tags:
//
//	Path string `name:"block-log" default:"./block_log" help:"..."`
func Load(cfg interface{}, args []string) error {
	return LoadWithOptions(cfg, args, nil)
}

func LoadWithOptions(cfg interface{}, args []string, opts *LoadOptions) error {
	if opts == nil {
		opts = &LoadOptions{
			ConfigFlag:    "config",
			DefaultConfig: "./config.ini",
		}
	}

	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("cfg must be a pointer to a struct")
	}
	v = v.Elem()

	fields := parseStructTags(v, v.Type())

	if err := applyDefaults(fields); err != nil {
		return fmt.Errorf("failed to apply defaults: %w", err)
	}

	fs := flag.NewFlagSet("config", flag.ContinueOnError)

	var configPath string
	fs.StringVar(&configPath, opts.ConfigFlag, "", "Path to config file")

	flagValues := make(map[string]*string)
	for i := range fields {
		f := &fields[i]
		for _, name := range append([]string{f.name}, f.aliases...) {
			ptr := new(string)
			if f.field.Kind() == reflect.Bool {
				fs.Var(boolSetter{ptr}, name, f.help)
			} else {
				fs.Var(stringSetter{ptr}, name, f.help)
			}
			flagValues[name] = ptr
		}
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		return err
	}

	if !opts.SkipAutoConfig && configPath == "" {
		if _, err := os.Stat(opts.DefaultConfig); err == nil {
			configPath = opts.DefaultConfig
		}
	}

	if configPath != "" {
		if err := loadINI(configPath, fields, opts.StrictINI); err != nil {
			return fmt.Errorf("failed to load config file: %w", err)
		}
	}

	for i := range fields {
		f := &fields[i]
		for _, name := range append([]string{f.name}, f.aliases...) {
			if ptr := flagValues[name]; ptr != nil && *ptr != "" {
				if err := setField(f.field, *ptr); err != nil {
					return fmt.Errorf("invalid value for --%s: %w", name, err)
				}
			}
		}
	}

	return validateRequired(fields)
}

// stringSetter records the raw flag value; typed conversion happens in
// setField so flags and ini values share one code path.
type stringSetter struct{ dst *string }

func (s stringSetter) String() string {
	if s.dst == nil {
		return ""
	}
	return *s.dst
}

func (s stringSetter) Set(v string) error {
	*s.dst = v
	return nil
}

// boolSetter lets boolean options appear bare on the command line.
type boolSetter struct{ dst *string }

func (s boolSetter) String() string {
	if s.dst == nil {
		return ""
	}
	return *s.dst
}

func (s boolSetter) Set(v string) error {
	if v == "" {
		v = "true"
	}
	*s.dst = v
	return nil
}

func (s boolSetter) IsBoolFlag() bool { return true }

func parseStructTags(v reflect.Value, t reflect.Type) []fieldInfo {
	var fields []fieldInfo

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		fv := v.Field(i)

		if !fv.CanSet() {
			continue
		}

		name := sf.Tag.Get("name")
		if name == "" {
			name = strings.ToLower(sf.Name)
		}

		var aliases []string
		if alias := sf.Tag.Get("alias"); alias != "" {
			for _, a := range strings.Split(alias, ",") {
				aliases = append(aliases, strings.TrimSpace(a))
			}
		}

		fields = append(fields, fieldInfo{
			field:        fv,
			name:         name,
			aliases:      aliases,
			help:         sf.Tag.Get("help"),
			isRequired:   sf.Tag.Get("required") == "true",
			defaultValue: sf.Tag.Get("default"),
		})
	}

	return fields
}

func applyDefaults(fields []fieldInfo) error {
	for i := range fields {
		f := &fields[i]
		if f.defaultValue == "" {
			continue
		}
		if err := setField(f.field, f.defaultValue); err != nil {
			return fmt.Errorf("bad default for %s: %w", f.name, err)
		}
	}
	return nil
}

func loadINI(path string, fields []fieldInfo, strict bool) error {
	parser := NewINIParser(path)

	for i := range fields {
		f := &fields[i]
		target := f.field
		setter := func(value string) error {
			return setField(target, value)
		}
		parser.handlers[f.name] = fieldHandler{setter: setter}
		for _, a := range f.aliases {
			parser.aliases[a] = f.name
		}
	}

	if strict {
		return parser.ParseStrict()
	}
	return parser.ParseWithUnknownHandler(nil)
}

func setField(fv reflect.Value, value string) error {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(value)
	case reflect.Bool:
		fv.SetBool(ParseBool(value))
	case reflect.Int, reflect.Int32, reflect.Int64:
		if fv.Type() == reflect.TypeOf(time.Duration(0)) {
			dur, err := time.ParseDuration(value)
			if err != nil {
				// Bare numbers are seconds.
				secs, serr := strconv.Atoi(value)
				if serr != nil {
					return fmt.Errorf("invalid duration: %s", value)
				}
				dur = time.Duration(secs) * time.Second
			}
			fv.SetInt(int64(dur))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %s", value)
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer: %s", value)
		}
		fv.SetUint(n)
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", fv.Type())
		}
		var items []string
		for _, item := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(item)
			if trimmed != "" {
				items = append(items, trimmed)
			}
		}
		fv.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field type %s", fv.Type())
	}
	return nil
}

func validateRequired(fields []fieldInfo) error {
	for i := range fields {
		f := &fields[i]
		if f.isRequired && f.field.IsZero() {
			return fmt.Errorf("required option --%s not set", f.name)
		}
	}
	return nil
}
