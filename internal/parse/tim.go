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

// TimFile reads a TOA file from disk.
func TimFile(path string) (pulsar.TOACollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return pulsar.TOACollection{}, errors.LoadFailed("opening TOA file", err)
	}
	defer f.Close()
	return Tim(f.Name(), bufio.NewScanner(f))
}

// Tim parses tempo2-format TOA lines: name, frequency, MJD, uncertainty,
// observatory code, then optional "-flag value" pairs. The MJD string is split
// lexically so the fractional day keeps its full printed precision.
func Tim(name string, sc *bufio.Scanner) (pulsar.TOACollection, error) {
	tc := pulsar.NewTOACollection()
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "C ") {
			continue
		}
		fields := strings.Fields(line)
		switch strings.ToUpper(fields[0]) {
		case "FORMAT", "MODE", "TIME", "INCLUDE", "EFAC", "EQUAD":
			// Header and mode directives carry no arrival times.
			continue
		}
		if len(fields) < 5 {
			return pulsar.TOACollection{}, errors.ParseFailed(name, lineNo,
				fmt.Errorf("TOA line has %d fields, need at least 5", len(fields)))
		}

		freq, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return pulsar.TOACollection{}, errors.ParseFailed(name, lineNo,
				fmt.Errorf("frequency %q is not numeric", fields[1]))
		}
		mjd, err := parseMJD(fields[2])
		if err != nil {
			return pulsar.TOACollection{}, errors.ParseFailed(name, lineNo, err)
		}
		toaErr, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return pulsar.TOACollection{}, errors.ParseFailed(name, lineNo,
				fmt.Errorf("uncertainty %q is not numeric", fields[3]))
		}
		if toaErr < 0 {
			return pulsar.TOACollection{}, errors.ParseFailed(name, lineNo,
				fmt.Errorf("uncertainty %v is negative", toaErr))
		}

		flags, err := parseFlags(fields[5:])
		if err != nil {
			return pulsar.TOACollection{}, errors.ParseFailed(name, lineNo, err)
		}

		tc.Append(pulsar.TOA{
			MJD:         mjd,
			Freq:        freq,
			Error:       toaErr,
			Observatory: fields[4],
			Flags:       flags,
		})
	}
	if err := sc.Err(); err != nil {
		return pulsar.TOACollection{}, errors.LoadFailed("reading TOA file", err)
	}
	if tc.Len() == 0 {
		return pulsar.TOACollection{}, errors.ParseFailed(name, lineNo,
			fmt.Errorf("no TOAs found"))
	}
	return tc, nil
}

// parseMJD splits the printed MJD at the decimal point before converting, so
// the day survives as an exact integer and the fraction keeps the precision
// the file gave it.
func parseMJD(s string) (pulsar.MJD, error) {
	intPart, fracPart, found := strings.Cut(s, ".")
	day, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return pulsar.MJD{}, fmt.Errorf("MJD %q is not numeric", s)
	}
	frac := 0.0
	if found && fracPart != "" {
		frac, err = strconv.ParseFloat("0."+fracPart, 64)
		if err != nil {
			return pulsar.MJD{}, fmt.Errorf("MJD %q is not numeric", s)
		}
	}
	return pulsar.NewMJD(day, frac), nil
}

func parseFlags(fields []string) (map[string]string, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	flags := make(map[string]string, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		key, ok := strings.CutPrefix(fields[i], "-")
		if !ok {
			return nil, fmt.Errorf("expected -flag, got %q", fields[i])
		}
		if i+1 >= len(fields) {
			return nil, fmt.Errorf("flag -%s has no value", key)
		}
		flags[key] = fields[i+1]
	}
	return flags, nil
}

// CheckCompatibility rejects source pairs where the model's validity window
// excludes every arrival time. Such a pair loads cleanly file-by-file but can
// never produce a meaningful residual.
func CheckCompatibility(params *pulsar.ParamSet, toas *pulsar.TOACollection) error {
	start, hasStart := params.Get("START")
	finish, hasFinish := params.Get("FINISH")
	if !hasStart && !hasFinish {
		return nil
	}
	for _, t := range toas.TOAs() {
		v := t.MJD.Float()
		if hasStart && v < start.Value {
			continue
		}
		if hasFinish && v > finish.Value {
			continue
		}
		return nil
	}
	return errors.IncompatibleSources(
		fmt.Sprintf("all %d TOAs fall outside the model validity window", toas.Len()))
}
