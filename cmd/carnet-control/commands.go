package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/carnet-go/vehicle-command/pkg/account"
	"github.com/carnet-go/vehicle-command/pkg/action"
	"github.com/carnet-go/vehicle-command/pkg/cli"
	"github.com/carnet-go/vehicle-command/pkg/vehicle"
)

var (
	ErrCommandLineArgs = errors.New("invalid command line arguments")
	ErrInvalidTemp     = errors.New("invalid temperature")
)

// spinCode supplies the S-PIN for commands that need one and were not given it as an argument.
var spinCode = func() (string, error) { return "", cli.ErrNoSpin }

type Argument struct {
	name string
	help string
}

type Handler func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error

type Command struct {
	help            string
	requiresVehicle bool // False for commands that only target the account
	requiresSpin    bool // True if the optional SPIN argument falls back to the configured S-PIN
	args            []Argument
	optional        []Argument
	handler         Handler
}

// ParseTemperature converts strings such as "21.5", "21c", or "70F" to degrees Celsius.
func ParseTemperature(s string) (float64, error) {
	s = strings.TrimSpace(s)
	unit := "C"
	if n := len(s); n > 0 {
		switch s[n-1] {
		case 'c', 'C':
			s = s[:n-1]
		case 'f', 'F':
			unit = "F"
			s = s[:n-1]
		}
	}
	degrees, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: format as 22C or 72F", ErrInvalidTemp)
	}
	if unit == "F" {
		degrees = (degrees - 32.0) * 5.0 / 9.0
	}
	// The backend accepts half degrees.
	return float64(int(degrees*2+0.5)) / 2, nil
}

// ParseOnOff parses the ON/OFF arguments of toggles.
func ParseOnOff(s string) (bool, error) {
	switch strings.ToUpper(s) {
	case "ON", "TRUE", "1":
		return true, nil
	case "OFF", "FALSE", "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: expected on or off", ErrCommandLineArgs)
}

// ParseChargeCurrent accepts "maximum", "reduced", or a current limit in amperes.
func ParseChargeCurrent(s string) (*action.ChargingSettings, error) {
	switch current := action.ChargeCurrent(strings.ToLower(s)); current {
	case action.ChargeCurrentMaximum, action.ChargeCurrentReduced:
		return &action.ChargingSettings{MaxChargeCurrentAC: current}, nil
	}
	amps, err := strconv.Atoi(strings.TrimSuffix(strings.ToUpper(s), "A"))
	if err != nil {
		return nil, fmt.Errorf("%w: expected maximum, reduced, or a current in amperes", ErrCommandLineArgs)
	}
	return &action.ChargingSettings{MaxChargeCurrentACAmpere: amps}, nil
}

// configureFlags verifies that c contains all the information required to execute a command.
func configureFlags(c *cli.Config, commandName string) error {
	info, ok := commands[commandName]
	if !ok {
		return ErrUnknownCommand
	}
	c.Flags = cli.FlagAccount | cli.FlagKeyring
	if info.requiresVehicle {
		c.Flags |= cli.FlagVIN
	}
	if info.requiresSpin {
		c.Flags |= cli.FlagSpin
	}
	_, err := checkReadiness(commandName, c.VIN != "")
	return err
}

var (
	ErrRequiresVIN    = errors.New("command requires a VIN")
	ErrUnknownCommand = errors.New("unrecognized command")
)

func checkReadiness(commandName string, haveVIN bool) (*Command, error) {
	info, ok := commands[commandName]
	if !ok {
		return nil, ErrUnknownCommand
	}
	if info.requiresVehicle && !haveVIN {
		return nil, ErrRequiresVIN
	}
	return info, nil
}

func execute(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args []string) error {
	if len(args) == 0 {
		return errors.New("missing COMMAND")
	}

	info, err := checkReadiness(args[0], car != nil)
	if err != nil {
		return err
	}

	if len(args)-1 < len(info.args) || len(args)-1 > len(info.args)+len(info.optional) {
		writeErr("Invalid number of command line arguments: %d (%d required, %d optional).", len(args)-1, len(info.args), len(info.optional))
		err = ErrCommandLineArgs
	} else {
		keywords := parseKeywords(info, args[1:])
		if info.requiresSpin && keywords["SPIN"] == "" {
			keywords["SPIN"], err = spinCode()
		}
		if err == nil {
			err = info.handler(ctx, acct, car, keywords)
		}
	}

	// Print command-specific help
	if errors.Is(err, ErrCommandLineArgs) {
		info.Usage(args[0])
	}
	return err
}

func parseKeywords(info *Command, args []string) map[string]string {
	keywords := make(map[string]string)
	for i, argInfo := range info.args {
		keywords[argInfo.name] = args[i]
	}
	index := len(info.args)
	for _, argInfo := range info.optional {
		if index >= len(args) {
			break
		}
		keywords[argInfo.name] = args[index]
		index++
	}
	return keywords
}

func (c *Command) Usage(name string) {
	fmt.Printf("Usage: %s", name)
	maxLength := 0
	for _, arg := range c.args {
		fmt.Printf(" %s", arg.name)
		if len(arg.name) > maxLength {
			maxLength = len(arg.name)
		}
	}
	if len(c.optional) > 0 {
		fmt.Printf(" [")
	}
	for _, arg := range c.optional {
		fmt.Printf(" %s", arg.name)
		if len(arg.name) > maxLength {
			maxLength = len(arg.name)
		}
	}
	if len(c.optional) > 0 {
		fmt.Printf(" ]")
	}
	fmt.Printf("\n%s\n", c.help)
	maxLength++
	for _, arg := range c.args {
		fmt.Printf("    %s:%s%s\n", arg.name, strings.Repeat(" ", maxLength-len(arg.name)), arg.help)
	}
	for _, arg := range c.optional {
		fmt.Printf("    %s:%s%s\n", arg.name, strings.Repeat(" ", maxLength-len(arg.name)), arg.help)
	}
}

// waitFor returns a function that blocks until a tracked command completes and reports the
// outcome.
func waitFor(ctx context.Context) func(*vehicle.Request, error) error {
	return func(req *vehicle.Request, err error) error {
		if err != nil {
			return err
		}
		if req == nil {
			fmt.Println("Sent")
			return nil
		}
		fmt.Printf("Request %s submitted, waiting for vehicle...\n", req.ID)
		status, err := req.Wait(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Request %s: %s\n", req.ID, status)
		return nil
	}
}

func printJSON(v interface{}) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "-"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Local().Format(time.DateTime)
	}
	return fmt.Sprint(value)
}

var spinArgument = Argument{name: "SPIN", help: "4-digit S-PIN (defaults to -spin or $" + cli.EnvSpin + ")"}

var commands = map[string]*Command{
	"list-vehicles": &Command{
		help: "List vehicles enrolled in the account",
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			cars, err := acct.ListVehicles(ctx)
			if err != nil {
				return err
			}
			for _, car := range cars {
				fmt.Printf("%s\t%s\t%s\n", car.VIN(), car.Nickname(), car.Model())
			}
			return nil
		},
	},
	"service-status": &Command{
		help: "Show the status of backend services as seen by this client",
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			status := acct.ServiceStatus()
			names := make([]string, 0, len(status))
			for name := range status {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("%-16s %s\n", name, status[name])
			}
			return nil
		},
	},
	"session-info": &Command{
		help: "Show the session state and token expiry",
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			fmt.Printf("State:   %s\n", acct.Session().State())
			if set := acct.Token(); set != nil {
				fmt.Printf("Expires: %s\n", set.ExpiresAt.Local().Format(time.DateTime))
				fmt.Printf("Refresh: %v\n", set.CanRefresh())
			}
			return nil
		},
	},
	"logout": &Command{
		help: "Revoke the session and forget saved tokens",
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			return acct.Logout(ctx)
		},
	},
	"status": &Command{
		help:            "Show vehicle instruments",
		requiresVehicle: true,
		optional: []Argument{
			Argument{name: "ALL", help: "Include instruments the vehicle does not support (all)"},
		},
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			readings := car.SupportedInstruments()
			if args["ALL"] != "" {
				if args["ALL"] != "all" {
					return fmt.Errorf("%w: expected 'all'", ErrCommandLineArgs)
				}
				readings = car.Instruments()
			}
			fmt.Printf("%s (updated %s)\n", car.VIN(), formatValue(car.UpdatedAt()))
			for _, reading := range readings {
				value := formatValue(reading.Value)
				if !reading.Supported {
					value = "unsupported"
				} else if reading.Unit != "" && reading.Value != nil {
					value += " " + reading.Unit
				}
				fmt.Printf("  %-32s %s\n", reading.Name, value)
			}
			return nil
		},
	},
	"instrument": &Command{
		help:            "Show a single instrument",
		requiresVehicle: true,
		args: []Argument{
			Argument{name: "NAME", help: "Instrument name, as shown by status"},
		},
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			reading, ok := car.Instrument(args["NAME"])
			if !ok {
				return fmt.Errorf("%w: unknown instrument %q", ErrCommandLineArgs, args["NAME"])
			}
			return printJSON(reading)
		},
	},
	"raw-status": &Command{
		help:            "Print the decoded status document",
		requiresVehicle: true,
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			return printJSON(car.RawState())
		},
	},
	"capabilities": &Command{
		help:            "List the vehicle's capabilities",
		requiresVehicle: true,
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			caps := car.Capabilities()
			for _, id := range caps.IDs() {
				d := caps.Get(id)
				state := "enabled"
				if blocked, ok := d.Blocked(); ok {
					state = blocked
				} else if !d.IsEnabled {
					state = "disabled"
				}
				fmt.Printf("%-28s %s\n", id, state)
			}
			return nil
		},
	},
	"pending": &Command{
		help:            "List commands this client is still tracking",
		requiresVehicle: true,
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			for _, req := range car.Outstanding() {
				fmt.Printf("%s\t%s\t%s\n", req.ID, req.Kind, req.Status())
			}
			return nil
		},
	},
	"wake": &Command{
		help:            "Ask the vehicle to publish fresh status",
		requiresVehicle: true,
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			return car.Wakeup(ctx)
		},
	},
	"lock": &Command{
		help:            "Lock vehicle",
		requiresVehicle: true,
		requiresSpin:    true,
		optional:        []Argument{spinArgument},
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			return waitFor(ctx)(car.Lock(ctx, args["SPIN"]))
		},
	},
	"unlock": &Command{
		help:            "Unlock vehicle",
		requiresVehicle: true,
		requiresSpin:    true,
		optional:        []Argument{spinArgument},
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			return waitFor(ctx)(car.Unlock(ctx, args["SPIN"]))
		},
	},
	"climate-on": &Command{
		help:            "Turn on climatisation",
		requiresVehicle: true,
		optional: []Argument{
			Argument{name: "TEMP", help: "Desired temperature (e.g., 70f or 21c; defaults to Celsius)"},
		},
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			var settings *action.ClimateSettings
			if args["TEMP"] != "" {
				degrees, err := ParseTemperature(args["TEMP"])
				if err != nil {
					return err
				}
				if settings, err = action.NewClimateSettings(degrees); err != nil {
					return err
				}
			}
			return waitFor(ctx)(car.StartClimate(ctx, settings))
		},
	},
	"climate-off": &Command{
		help:            "Turn off climatisation",
		requiresVehicle: true,
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			return waitFor(ctx)(car.StopClimate(ctx))
		},
	},
	"climate-set-temp": &Command{
		help:            "Set climatisation temperature without starting it",
		requiresVehicle: true,
		args: []Argument{
			Argument{name: "TEMP", help: "Desired temperature (e.g., 70f or 21c; defaults to Celsius)"},
		},
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			degrees, err := ParseTemperature(args["TEMP"])
			if err != nil {
				return err
			}
			settings, err := action.NewClimateSettings(degrees)
			if err != nil {
				return err
			}
			return waitFor(ctx)(car.SetClimateSettings(ctx, settings))
		},
	},
	"window-heating-on": &Command{
		help:            "Turn on window heating",
		requiresVehicle: true,
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			return waitFor(ctx)(car.StartWindowHeating(ctx))
		},
	},
	"window-heating-off": &Command{
		help:            "Turn off window heating",
		requiresVehicle: true,
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			return waitFor(ctx)(car.StopWindowHeating(ctx))
		},
	},
	"aux-heat-on": &Command{
		help:            "Turn on the auxiliary heater",
		requiresVehicle: true,
		requiresSpin:    true,
		optional: []Argument{
			Argument{name: "MINUTES", help: "Duration, a multiple of 10 up to 60 (defaults to the vehicle's setting)"},
			spinArgument,
		},
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			var minutes int
			if args["MINUTES"] != "" {
				var err error
				if minutes, err = strconv.Atoi(args["MINUTES"]); err != nil {
					return fmt.Errorf("%w: invalid MINUTES", ErrCommandLineArgs)
				}
			}
			return waitFor(ctx)(car.StartAuxiliaryHeating(ctx, args["SPIN"], minutes))
		},
	},
	"aux-heat-off": &Command{
		help:            "Turn off the auxiliary heater",
		requiresVehicle: true,
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			return waitFor(ctx)(car.StopAuxiliaryHeating(ctx))
		},
	},
	"charging-start": &Command{
		help:            "Start charging",
		requiresVehicle: true,
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			return waitFor(ctx)(car.StartCharging(ctx))
		},
	},
	"charging-stop": &Command{
		help:            "Stop charging",
		requiresVehicle: true,
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			return waitFor(ctx)(car.StopCharging(ctx))
		},
	},
	"charging-set-limit": &Command{
		help:            "Set charge limit to PERCENT",
		requiresVehicle: true,
		args: []Argument{
			Argument{name: "PERCENT", help: "Charging limit, a multiple of 10 between 50 and 100"},
		},
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			limit, err := strconv.Atoi(args["PERCENT"])
			if err != nil {
				return fmt.Errorf("%w: error parsing PERCENT", ErrCommandLineArgs)
			}
			return waitFor(ctx)(car.SetChargingSettings(ctx, &action.ChargingSettings{TargetSOCPercent: limit}))
		},
	},
	"charging-set-amps": &Command{
		help:            "Set the AC charge current",
		requiresVehicle: true,
		args: []Argument{
			Argument{name: "CURRENT", help: "maximum, reduced, or a limit in amperes (5, 10, 13, 16, 32)"},
		},
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			settings, err := ParseChargeCurrent(args["CURRENT"])
			if err != nil {
				return err
			}
			return waitFor(ctx)(car.SetChargingSettings(ctx, settings))
		},
	},
	"battery-care": &Command{
		help:            "Turn battery care on or off",
		requiresVehicle: true,
		args: []Argument{
			Argument{name: "STATE", help: "on or off"},
		},
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			on, err := ParseOnOff(args["STATE"])
			if err != nil {
				return err
			}
			mode := action.BatteryCareDeactivated
			if on {
				mode = action.BatteryCareActivated
			}
			return waitFor(ctx)(car.SetBatteryCareMode(ctx, mode))
		},
	},
	"battery-support": &Command{
		help:            "Allow or forbid using the traction battery to support the 12V battery",
		requiresVehicle: true,
		args: []Argument{
			Argument{name: "STATE", help: "on or off"},
		},
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			on, err := ParseOnOff(args["STATE"])
			if err != nil {
				return err
			}
			return waitFor(ctx)(car.SetBatterySupport(ctx, on))
		},
	},
	"honk": &Command{
		help:            "Honk horn and flash lights",
		requiresVehicle: true,
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			return waitFor(ctx)(car.HonkAndFlash(ctx, action.ModeHonkAndFlash))
		},
	},
	"flash-lights": &Command{
		help:            "Flash lights",
		requiresVehicle: true,
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			return waitFor(ctx)(car.HonkAndFlash(ctx, action.ModeFlash))
		},
	},
	"update": &Command{
		help:            "Fetch fresh vehicle state",
		requiresVehicle: true,
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args map[string]string) error {
			if err := car.Update(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Some status could not be fetched: %s\n", err)
			}
			fmt.Printf("Updated %s\n", formatValue(car.UpdatedAt()))
			return nil
		},
	},
}
