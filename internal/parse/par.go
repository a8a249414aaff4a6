// Package parse reads timing-model parameter files and TOA files into the
// in-memory state types. Parsing is strict and all-or-nothing: any malformed
// line fails the whole load with the offending file and line attached, and no
// partially populated state escapes.
package parse

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"plk/internal/errors"
	"plk/internal/pulsar"
)

// Parameter-file keys that carry string metadata rather than a fitted value.
var metaKeys = map[string]bool{
	"PSR":       true,
	"PSRJ":      true,
	"PSRB":      true,
	"EPHEM":     true,
	"CLK":       true,
	"CLOCK":     true,
	"UNITS":     true,
	"TIMEEPH":   true,
	"T2CMETHOD": true,
	"BINARY":    true,
}

// Units for the parameters this core computes with. Anything else is carried
// through untyped.
var paramUnits = map[string]string{
	"F0":       "Hz",
	"F1":       "Hz/s",
	"F2":       "Hz/s^2",
	"PEPOCH":   "MJD",
	"POSEPOCH": "MJD",
	"DMEPOCH":  "MJD",
	"START":    "MJD",
	"FINISH":   "MJD",
	"DM":       "pc/cm^3",
}

// ParFile reads a parameter file from disk.
func ParFile(path string) (pulsar.ParamSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return pulsar.ParamSet{}, errors.LoadFailed("opening parameter file", err)
	}
	defer f.Close()
	return Par(f.Name(), bufio.NewScanner(f))
}

// Par parses parameter lines from a scanner. The name is used for error
// reporting only.
func Par(name string, sc *bufio.Scanner) (pulsar.ParamSet, error) {
	ps := pulsar.NewParamSet()
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "C ") {
			continue
		}
		fields := strings.Fields(line)
		key := strings.ToUpper(fields[0])

		if metaKeys[key] {
			if len(fields) < 2 {
				return pulsar.ParamSet{}, errors.ParseFailed(name, lineNo,
					fmt.Errorf("%s requires a value", key))
			}
			ps.SetMeta(key, fields[1])
			continue
		}

		if len(fields) < 2 {
			return pulsar.ParamSet{}, errors.ParseFailed(name, lineNo,
				fmt.Errorf("parameter %s has no value", key))
		}
		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			// Unrecognized non-numeric entries become metadata rather than
			// killing the load; tempo-family files carry many of them.
			ps.SetMeta(key, strings.Join(fields[1:], " "))
			continue
		}

		p := pulsar.Param{Name: key, Value: value, Frozen: true, Unit: paramUnits[key]}
		if len(fields) >= 3 {
			fit, err := strconv.Atoi(fields[2])
			if err != nil {
				return pulsar.ParamSet{}, errors.ParseFailed(name, lineNo,
					fmt.Errorf("parameter %s: fit flag %q is not an integer", key, fields[2]))
			}
			p.Frozen = fit == 0
		}
		if len(fields) >= 4 {
			unc, err := strconv.ParseFloat(fields[3], 64)
			if err != nil {
				return pulsar.ParamSet{}, errors.ParseFailed(name, lineNo,
					fmt.Errorf("parameter %s: uncertainty %q is not numeric", key, fields[3]))
			}
			p.Uncertainty = unc
		}
		if err := ps.Add(p); err != nil {
			return pulsar.ParamSet{}, errors.ParseFailed(name, lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return pulsar.ParamSet{}, errors.LoadFailed("reading parameter file", err)
	}
	if ps.Len() == 0 {
		return pulsar.ParamSet{}, errors.ParseFailed(name, lineNo,
			fmt.Errorf("no parameters found"))
	}
	return ps, nil
}
