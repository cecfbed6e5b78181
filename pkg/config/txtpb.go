// ttlcache uses flags and a single config file for configuration.
// A config file is stored in .txtpb format and contains the values that can be set via flags.

package config

import (
	"flag"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/durationpb"
)

// skippedProtobufFlags is the list of command line flags on which the protobuf check is disabled.
var skippedProtobufFlags = []string{"print_version", "config_file"}

func isDuration(fd protoreflect.FieldDescriptor) bool {
	return fd.Kind() == protoreflect.MessageKind && "."+string(fd.Message().FullName()) == durationTypeName
}

// isFlagField reports whether the field sets a flag, as opposed to grouping other fields.
func isFlagField(fd protoreflect.FieldDescriptor) bool {
	return fd.Kind() != protoreflect.MessageKind || isDuration(fd)
}

// durationFromMessage reads a google.protobuf.Duration held by a dynamic message.
func durationFromMessage(m protoreflect.Message) (*durationpb.Duration, error) {
	fields := m.Descriptor().Fields()
	seconds, nanos := fields.ByName("seconds"), fields.ByName("nanos")
	if seconds == nil || nanos == nil {
		return nil, fmt.Errorf("%s is not a duration", m.Descriptor().FullName())
	}
	duration := &durationpb.Duration{Seconds: m.Get(seconds).Int(), Nanos: int32(m.Get(nanos).Int())}
	if err := duration.CheckValid(); err != nil {
		return nil, err
	}
	return duration, nil
}

// protobufValueToString converts a protobuf field value to its string representation suitable for flag setting.
func protobufValueToString(fd protoreflect.FieldDescriptor, v protoreflect.Value) (string, error) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return strconv.FormatBool(v.Bool()), nil
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return strconv.FormatInt(v.Int(), 10), nil
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return strconv.FormatUint(v.Uint(), 10), nil
	case protoreflect.StringKind:
		return v.String(), nil
	case protoreflect.MessageKind:
		if !isDuration(fd) {
			return "", fmt.Errorf("unsupported message leaf: %s", fd.Message().FullName())
		}
		duration, err := durationFromMessage(v.Message())
		if err != nil {
			return "", fmt.Errorf("invalid duration in %s: %w", fd.FullName(), err)
		}
		return duration.AsDuration().String(), nil
	default:
		return "", fmt.Errorf("unsupported kind: %v", fd.Kind())
	}
}

// collectFlags collects all flags with their values from the given protobuf message.
// The collected flags are put inside the given `flags` variable.
func collectFlags(flags map[ /*flagName*/ string] /*flagValue*/ string, m protoreflect.Message) error {
	var err error
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		if fd.IsList() || fd.IsMap() {
			err = fmt.Errorf("repeated/map not supported: %s", fd.FullName())
			return false
		}
		// Recurse into sections.
		if !isFlagField(fd) {
			err = collectFlags(flags, v.Message())
			return err == nil
		}
		flagName := string(fd.Name())
		stringValue, convErr := protobufValueToString(fd, v)
		if convErr != nil {
			err = fmt.Errorf("failed to convert %s: %w", fd.FullName(), convErr)
			return false
		}
		// Check for duplicate flag entries.
		if _, alreadyExists := flags[flagName]; alreadyExists {
			err = fmt.Errorf("flag '%s' has multiple entries in txtpb config: '%s'", flagName, fd.FullName())
			return false
		}
		flags[flagName] = stringValue
		return true
	})
	return err
}

// parseConfig decodes a txtpb config into a dynamic Config message.
func parseConfig(configBytes []byte) (protoreflect.Message, error) {
	md, err := configDescriptor()
	if err != nil {
		return nil, err
	}
	conf := dynamicpb.NewMessage(md)
	if err := prototext.Unmarshal(configBytes, conf); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return conf, nil
}

// setConfigFlags sets all the filled flags in the given `conf` to the global flag variables. Flags listed in
// `skipped` keep their current value.
func setConfigFlags(conf protoreflect.Message, skipped map[string]struct{}) error {
	configuredFlags := make(map[ /*flagName*/ string] /*flagValue*/ string)
	if err := collectFlags(configuredFlags, conf); err != nil {
		return fmt.Errorf("failed to collect flags: %w", err)
	}
	for flagName, flagValue := range configuredFlags {
		if _, skip := skipped[flagName]; skip {
			continue
		}
		if setErr := flag.Set(flagName, flagValue); setErr != nil {
			return fmt.Errorf("failed to set flag %s: %w", flagName, setErr)
		}
	}
	return nil
}

// getDefinedFlags returns the set of defined flags inside the given protobuf message schema.
func getDefinedFlags(md protoreflect.MessageDescriptor) (map[ /*flagName*/ string]struct{}, error) {
	flagSet := make(map[ /*flagName*/ string]struct{})
	var walkFields func(md protoreflect.MessageDescriptor) error
	walkFields = func(md protoreflect.MessageDescriptor) error {
		for fieldIdx := 0; fieldIdx < md.Fields().Len(); fieldIdx++ {
			fd := md.Fields().Get(fieldIdx)
			if fd.IsList() || fd.IsMap() {
				continue // Skip repeated/map fields.
			}
			if !isFlagField(fd) {
				if err := walkFields(fd.Message()); err != nil {
					return err
				}
				continue
			}
			flagName := string(fd.Name())
			if _, exists := flagSet[flagName]; exists {
				return fmt.Errorf("duplicate flag name '%s' in config: %s", flagName, fd.FullName())
			}
			flagSet[flagName] = struct{}{}
		}
		return nil
	}
	if err := walkFields(md); err != nil {
		return nil, err
	}
	return flagSet, nil
}

// CollectUnregisteredFlags collects all flags that haven't been registered in the protobuf config.
// An error exists in the results corresponding to each unregistered flag.
func CollectUnregisteredFlags() []error {
	md, err := configDescriptor()
	if err != nil {
		return []error{err}
	}
	definedFlags, err := getDefinedFlags(md)
	if err != nil {
		return []error{err}
	}
	errs := make([]error, 0)
	flag.VisitAll(func(f *flag.Flag) {
		if strings.HasPrefix(f.Name, "test.") { // Skip test flags.
			return
		}
		if slices.Contains(skippedProtobufFlags, f.Name) {
			return
		}
		if _, flagHasConfigEntry := definedFlags[f.Name]; !flagHasConfigEntry {
			errs = append(errs, fmt.Errorf("flag '%s' has not been defined in protobuf config", f.Name))
		}
	})
	return errs
}
