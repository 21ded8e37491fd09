// Package config loads QoS profiles from an INI file (spec §4.7, §4.2:
// EndpointQos bootstrap), the same way the teacher's od_parser.go loads
// an EDS file to seed an ObjectDictionary.
//
// Grounded on the teacher's od_parser.go (ini.Load + per-section
// parsing into typed fields), generalized from CANopen object entries
// to named QoS profiles.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/qos"
)

// LoadQosProfiles parses filePath as an INI file of QoS profiles (spec
// §4.7 bootstrap): each section names a profile, and recognized keys
// set the corresponding EndpointQos policy. Keys absent from a section
// keep qos.Default()'s value.
func LoadQosProfiles(filePath string) (map[string]qos.EndpointQos, error) {
	f, err := ini.Load(filePath)
	if err != nil {
		return nil, fmt.Errorf("loading qos profile file %q: %w", filePath, err)
	}
	return parseQosProfiles(f)
}

// LoadQosProfilesFromBytes is LoadQosProfiles's raw-bytes counterpart,
// mirroring ParseEDSFromRaw's split of file-path vs. in-memory sources.
func LoadQosProfilesFromBytes(data []byte) (map[string]qos.EndpointQos, error) {
	f, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("loading qos profile data: %w", err)
	}
	return parseQosProfiles(f)
}

func parseQosProfiles(f *ini.File) (map[string]qos.EndpointQos, error) {
	profiles := make(map[string]qos.EndpointQos)
	for _, section := range f.Sections() {
		name := section.Name()
		if name == ini.DefaultSection {
			continue
		}
		q := qos.Default()
		if err := applySection(section, &q); err != nil {
			return nil, fmt.Errorf("qos profile %q: %w", name, err)
		}
		profiles[name] = q
		log.Debugf("[config] loaded qos profile %q", name)
	}
	return profiles, nil
}

func applySection(section *ini.Section, q *qos.EndpointQos) error {
	if k := section.Key("reliability"); k.String() != "" {
		switch strings.ToUpper(k.String()) {
		case "RELIABLE":
			q.Reliability.Kind = qos.Reliable
		case "BEST_EFFORT":
			q.Reliability.Kind = qos.BestEffort
		default:
			return fmt.Errorf("unknown reliability %q: %w", k.String(), rtps.ErrBadParameter)
		}
	}
	if k := section.Key("durability"); k.String() != "" {
		switch strings.ToUpper(k.String()) {
		case "VOLATILE":
			q.Durability.Kind = qos.Volatile
		case "TRANSIENT_LOCAL":
			q.Durability.Kind = qos.TransientLocal
		case "TRANSIENT":
			q.Durability.Kind = qos.Transient
		case "PERSISTENT":
			q.Durability.Kind = qos.Persistent
		default:
			return fmt.Errorf("unknown durability %q: %w", k.String(), rtps.ErrBadParameter)
		}
	}
	if k := section.Key("history.kind"); k.String() != "" {
		switch strings.ToUpper(k.String()) {
		case "KEEP_LAST":
			q.History.Kind = qos.KeepLast
		case "KEEP_ALL":
			q.History.Kind = qos.KeepAll
		default:
			return fmt.Errorf("unknown history kind %q: %w", k.String(), rtps.ErrBadParameter)
		}
	}
	if k := section.Key("history.depth"); k.String() != "" {
		depth, err := strconv.Atoi(k.String())
		if err != nil {
			return fmt.Errorf("history.depth: %w", rtps.ErrBadParameter)
		}
		q.History.Depth = depth
	}
	if ms, err := durationMillisKey(section, "deadline.period_ms"); err == nil && ms != nil {
		q.Deadline.Period = rtps.DurationFromTimeDuration(*ms)
	}
	if ms, err := durationMillisKey(section, "latency_budget.duration_ms"); err == nil && ms != nil {
		q.LatencyBudget.Duration = rtps.DurationFromTimeDuration(*ms)
	}
	if ms, err := durationMillisKey(section, "liveliness.lease_duration_ms"); err == nil && ms != nil {
		q.Liveliness.LeaseDuration = rtps.DurationFromTimeDuration(*ms)
	}
	if k := section.Key("liveliness.kind"); k.String() != "" {
		switch strings.ToUpper(k.String()) {
		case "AUTOMATIC":
			q.Liveliness.Kind = qos.Automatic
		case "MANUAL_BY_PARTICIPANT":
			q.Liveliness.Kind = qos.ManualByParticipant
		case "MANUAL_BY_TOPIC":
			q.Liveliness.Kind = qos.ManualByTopic
		default:
			return fmt.Errorf("unknown liveliness kind %q: %w", k.String(), rtps.ErrBadParameter)
		}
	}
	if k := section.Key("ownership"); k.String() != "" {
		switch strings.ToUpper(k.String()) {
		case "SHARED":
			q.Ownership.Kind = qos.Shared
		case "EXCLUSIVE":
			q.Ownership.Kind = qos.Exclusive
		default:
			return fmt.Errorf("unknown ownership %q: %w", k.String(), rtps.ErrBadParameter)
		}
	}
	if k := section.Key("partition"); k.String() != "" {
		q.Partition.Names = splitAndTrim(k.String())
	}
	return nil
}

func durationMillisKey(section *ini.Section, key string) (*time.Duration, error) {
	k := section.Key(key)
	if k.String() == "" {
		return nil, nil
	}
	ms, err := strconv.Atoi(k.String())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, rtps.ErrBadParameter)
	}
	d := time.Duration(ms) * time.Millisecond
	return &d, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
