/*
   magpie - DiscFerret disc image acquisition
   Copyright (c) 2026, the magpie authors
   Portions copyright (c) 2021, Alexander Vollschwitz

   This file is part of magpie.

   magpie is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   magpie is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with magpie. If not, see <http://www.gnu.org/licenses/>.
*/

package run

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

//
const notesHeader = `
Notes:

`

/*
	The package initializer sets up logging based on logrus. The following
	environment variables can be used to configure logging:

		LOG_FORMAT		set to `json` for JSON logging
		LOG_FORCE_COLORS	set to non-empty for forcing colorized log entries
		LOG_METHODS		set to non-empty for including methods in log
		LOG_LEVEL		`panic`, `fatal`, `error`, `warn`, `info`, `debug`, `trace`

	Commands taking the --verbose flag raise the level to at least debug.
*/
func init() {
	configureLogging(os.Stderr, os.Getenv)
}

/*
	configureLogging sets up the standard logger. Logs go to out, which is
	stderr outside of tests, so that listings written to stdout can be piped
	into other tools.
*/
func configureLogging(out io.Writer, getenv func(string) string) {

	log.SetOutput(out)

	switch {
	case strings.EqualFold(getenv("LOG_FORMAT"), "json"):
		log.SetFormatter(&log.JSONFormatter{})
	case getenv("LOG_FORCE_COLORS") != "":
		log.SetFormatter(&log.TextFormatter{ForceColors: true})
	default:
		log.SetFormatter(&log.TextFormatter{})
	}

	log.SetReportCaller(getenv("LOG_METHODS") != "")

	if level := getenv("LOG_LEVEL"); level != "" {
		l, err := log.ParseLevel(level)
		if err != nil {
			log.Errorf("invalid log level: '%s'; valid levels are: panic, "+
				"fatal, error, warn, info, debug, trace", level)
			return
		}
		log.SetLevel(l)
	}
}

// raiseLogLevel makes logging at least as verbose as level.
func raiseLogLevel(level log.Level) {
	if log.GetLevel() < level {
		log.SetLevel(level)
	}
}

// DieOnError exits the running process if e is not nil. The error gets printed.
func DieOnError(e error) {
	if e != nil {
		Die("%v\n", e)
	}
}

// Die prints the given message and exits the running process.
func Die(msg string, params ...interface{}) {
	fmt.Fprintf(os.Stderr, msg, params...)
	os.Exit(1)
}

// GetUserConfirmation asks a yes/no question on the console, no being the
// default.
func GetUserConfirmation(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	var res string
	fmt.Scanln(&res)
	return strings.EqualFold(strings.TrimSpace(res), "y")
}

/*
	NewCommand creates a base command instance, wrapping a new Cobra command.
	The exec function is invoked when the command's Execute method is called.
*/
func NewCommand(use, short, long, helpPrologue, helpEpilogue string,
	exec func() error) *Command {

	c := &Command{
		cmd: &cobra.Command{
			Use:   use,
			Short: short,
			Long:  long,
			RunE: func(*cobra.Command, []string) error {
				return exec()
			},
			SilenceErrors:         true,
			SilenceUsage:          true,
			DisableFlagsInUseLine: true,
		},
		settings:     map[string]*setting{},
		helpPrologue: helpPrologue,
		helpEpilogue: helpEpilogue,
	}
	c.helpFunc = c.cmd.HelpFunc()
	c.cmd.SetHelpFunc(c.help)
	return c
}

/*
	Command is a wrapper around Cobra & Viper. Each setting is bound to a
	struct field and can come from a command line flag or, optionally, an
	environment variable, with the flag taking precedence. Whether a setting
	was given explicitly is tracked, so that callers can layer explicit
	settings over values from other sources, such as acquisition profiles.

	Cobra/Viper can't express a required setting that may come from either a
	flag or an environment variable (https://github.com/spf13/viper/issues/397),
	so required settings are checked here, with an error message naming both.
*/
type Command struct {
	//
	cmd *cobra.Command
	//
	settings map[string]*setting
	//
	helpPrologue string
	helpEpilogue string
	helpFunc     func(*cobra.Command, []string)
}

//
func (c *Command) help(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	if c.helpPrologue != "" {
		fmt.Fprintln(out, c.helpPrologue)
	}
	if c.helpFunc != nil {
		c.helpFunc(cmd, args)
	}
	if c.helpEpilogue != "" {
		fmt.Fprint(out, notesHeader)
		fmt.Fprintln(out, c.helpEpilogue)
	} else {
		fmt.Fprintln(out)
	}
}

/*
	Execute invokes the exec function that was set on this command when it was
	created. If args is of non-zero length, it overrides os.Args.
*/
func (c *Command) Execute(args []string) error {
	if len(args) > 0 {
		c.cmd.SetArgs(args)
	}
	return c.cmd.Execute()
}

/*
	AddSetting adds a setting to this command. Target is a pointer to the
	scalar field the setting is bound to. Flag is the long (double-dash)
	command line flag, short its single-dash version, and env the environment
	variable that may carry the setting. def is the default value, nil for the
	zero value of the target's type. Required settings must not have a default.
	Invalid declarations are programming errors and end the process.
*/
func (c *Command) AddSetting(target interface{}, flag, short, env string,
	def interface{}, help string, required bool) {

	s, err := newSetting(target, flag, env, required)
	DieOnError(err)
	c.settings[flag] = s

	log.Tracef("add setting: flag=%s, env=%s, type=%s", flag, env, s.typ)

	defVal := reflect.Zero(s.typ)
	if def != nil {
		if required {
			Die("required setting '%s' does not take a default value\n", flag)
		}
		if !reflect.TypeOf(def).ConvertibleTo(s.typ) {
			Die("default value for setting '%s' has incorrect type\n", flag)
		}
		defVal = reflect.ValueOf(def).Convert(s.typ)
	}

	flags := c.cmd.Flags()
	varP, err := pflagMethod(s.name, flags)
	DieOnError(err)

	if env != "" {
		help = fmt.Sprintf("%s (%s)", help, env)
	}

	varP.Call([]reflect.Value{reflect.ValueOf(target), reflect.ValueOf(flag),
		reflect.ValueOf(short), defVal, reflect.ValueOf(help)})

	viper.BindPFlag(flag, flags.Lookup(flag))
	if env != "" {
		viper.BindEnv(flag, env)
	}
}

/*
	ParseSettings fills all settings added so far into their bound fields. Call
	it from the exec function, before using any of the bound fields.
*/
func (c *Command) ParseSettings() {
	for _, s := range c.settings {
		DieOnError(s.parse())
	}
}

/*
	IsSet reports whether the setting for flag was given explicitly, either on
	the command line or through its environment variable.
*/
func (c *Command) IsSet(flag string) bool {
	if f := c.cmd.Flags().Lookup(flag); f != nil && f.Changed {
		return true
	}
	if s, ok := c.settings[flag]; ok && s.env != "" {
		_, set := os.LookupEnv(s.env)
		return set
	}
	return false
}

/*
	Overlay copies the value of each explicitly given setting to the variable
	its flag is mapped to in dst. Variables for settings not given explicitly
	keep their values. Flags this command does not define are skipped, so
	commands sharing settings can share one mapping.
*/
func (c *Command) Overlay(dst map[string]interface{}) error {

	for flag, d := range dst {

		s, ok := c.settings[flag]
		if !ok || !c.IsSet(flag) {
			continue
		}

		to := reflect.ValueOf(d)
		if to.Kind() != reflect.Ptr || to.IsNil() {
			return fmt.Errorf("overlay target for '%s' is not a pointer", flag)
		}
		to = to.Elem()

		from := reflect.ValueOf(s.target).Elem()
		if !from.Type().ConvertibleTo(to.Type()) {
			return fmt.Errorf("setting '%s' of type %s cannot be applied to %s",
				flag, from.Type(), to.Type())
		}

		log.Tracef("overlay setting: flag=%s, value=%v", flag, from)
		to.Set(from.Convert(to.Type()))
	}

	return nil
}

// setting is a scalar setting bound to a field
type setting struct {
	flag     string
	env      string
	required bool
	target   interface{}
	typ      reflect.Type
	// name of the type as used in Viper getters and pflag methods
	name string
}

//
func newSetting(target interface{}, flag, env string,
	required bool) (*setting, error) {

	t := reflect.TypeOf(target)
	if t == nil || t.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("target for setting '%s' is not a pointer", flag)
	}

	elem := t.Elem()
	if elem.Kind() == reflect.Slice || elem.Kind() == reflect.Map ||
		elem.Name() == "" {
		return nil, fmt.Errorf("setting '%s' is not a scalar", flag)
	}

	s := &setting{
		flag:     flag,
		env:      env,
		required: required,
		target:   target,
		typ:      elem,
		name:     strings.ToUpper(elem.Name()[:1]) + elem.Name()[1:],
	}

	if _, err := viperGetter(s.name); err != nil {
		// pflag supports more types than Viper, so check here to fail early
		return nil, fmt.Errorf("setting '%s' is of unsupported type: %v", flag, err)
	}

	return s, nil
}

/*
	parse retrieves the value of this setting through Viper, and checks it if
	required. Viper's BindEnv doesn't set the bound field, so the value is
	always written back to it. For flags, this changes nothing.
*/
func (s *setting) parse() error {

	get, err := viperGetter(s.name)
	if err != nil {
		return err
	}

	val := get.Call([]reflect.Value{reflect.ValueOf(s.flag)})[0]
	log.Tracef("get setting: flag=%s, value='%v', set=%v",
		s.flag, val, viper.IsSet(s.flag))

	if s.required && val.IsZero() {
		msg := fmt.Sprintf("you need to specify the --%s command line flag", s.flag)
		if s.env != "" {
			msg = fmt.Sprintf("%s or the %s environment variable", msg, s.env)
		}
		return fmt.Errorf("%s", msg)
	}

	reflect.ValueOf(s.target).Elem().Set(val.Convert(s.typ))
	return nil
}

//
func viperGetter(n string) (reflect.Value, error) {
	method := fmt.Sprintf("Get%s", n)
	ret := reflect.ValueOf(viper.GetViper()).MethodByName(method)
	if ret.Kind() != reflect.Func {
		return ret, fmt.Errorf("no Viper getter %s", method)
	}
	return ret, nil
}

//
func pflagMethod(n string, f *pflag.FlagSet) (reflect.Value, error) {
	method := fmt.Sprintf("%sVarP", n)
	ret := reflect.ValueOf(f).MethodByName(method)
	if ret.Kind() != reflect.Func {
		return ret, fmt.Errorf("no pflag method %s", method)
	}
	return ret, nil
}
