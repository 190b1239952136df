// wire.go encodes and decodes a StoreRecord to/from an eight-field hash
// schema: t,n,e,m,b,r,f,v at key cl:<hex32(zone)>:<hex32(name)>:<type>.
package store

import (
	"encoding/json"
	"fmt"
	"strconv"

	"authdns/internal/model"
)

// wireFields is the Redis hash representation of a StoreRecord.
type wireFields struct {
	Type      string // t
	Name      string // n
	TTL       string // e — "0" for unset
	Flatten   string // m — "1" or ""
	Blackhole string // b — JSON array or ""
	Regions   string // r — JSON object or ""
	Rescue    string // f — JSON array or ""
	Values    string // v — JSON array
}

func (w wireFields) toMap() map[string]string {
	return map[string]string{
		"t": w.Type,
		"n": w.Name,
		"e": w.TTL,
		"m": w.Flatten,
		"b": w.Blackhole,
		"r": w.Regions,
		"f": w.Rescue,
		"v": w.Values,
	}
}

// encodeRecord renders a StoreRecord into the wire hash-field set.
func encodeRecord(name model.RecordName, r *model.StoreRecord) (map[string]string, error) {
	ttl := "0"
	if r.TTL != nil {
		ttl = strconv.FormatUint(uint64(*r.TTL), 10)
	}

	flatten := ""
	if r.Flatten {
		flatten = "1"
	}

	blackholeList := make([]string, 0, len(r.Blackhole))
	for k := range r.Blackhole {
		blackholeList = append(blackholeList, k)
	}
	blackholeJSON, err := marshalOrEmpty(blackholeList)
	if err != nil {
		return nil, fmt.Errorf("store: encode blackhole: %w", err)
	}

	regionsJSON, err := marshalOrEmpty(r.Regions)
	if err != nil {
		return nil, fmt.Errorf("store: encode regions: %w", err)
	}

	rescueJSON, err := marshalOrEmpty(r.Rescue)
	if err != nil {
		return nil, fmt.Errorf("store: encode rescue: %w", err)
	}

	valuesJSON, err := json.Marshal(r.Values)
	if err != nil {
		return nil, fmt.Errorf("store: encode values: %w", err)
	}

	w := wireFields{
		Type:      string(r.Kind),
		Name:      string(name),
		TTL:       ttl,
		Flatten:   flatten,
		Blackhole: blackholeJSON,
		Regions:   regionsJSON,
		Rescue:    rescueJSON,
		Values:    string(valuesJSON),
	}
	return w.toMap(), nil
}

func marshalOrEmpty(v interface{}) (string, error) {
	switch x := v.(type) {
	case []string:
		if len(x) == 0 {
			return "", nil
		}
	case model.RecordRegions:
		if len(x) == 0 {
			return "", nil
		}
	case []model.RecordValue:
		if len(x) == 0 {
			return "", nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ErrCorrupted is returned when a remote hash's field shape doesn't match
// the expected schema.
var ErrCorrupted = fmt.Errorf("store: corrupted record")

// decodeRecord parses a remote hash reply back into a StoreRecord. An
// empty fields map (no hash at that key) should be treated by the caller
// as NotFound before calling decodeRecord.
func decodeRecord(fields map[string]string) (model.RecordName, *model.StoreRecord, error) {
	kind := model.RecordType(fields["t"])
	if !kind.Valid() {
		return "", nil, ErrCorrupted
	}

	name, ok := model.NewRecordName(fields["n"])
	if !ok {
		return "", nil, ErrCorrupted
	}

	var ttl *uint32
	if s := fields["e"]; s != "" && s != "0" {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return "", nil, ErrCorrupted
		}
		u := uint32(n)
		ttl = &u
	}

	var values []model.RecordValue
	if err := json.Unmarshal([]byte(fields["v"]), &values); err != nil {
		return "", nil, ErrCorrupted
	}
	if len(values) == 0 {
		return "", nil, ErrCorrupted
	}

	blackhole := make(map[string]struct{})
	if s := fields["b"]; s != "" {
		var list []string
		if err := json.Unmarshal([]byte(s), &list); err != nil {
			return "", nil, ErrCorrupted
		}
		for _, region := range list {
			blackhole[region] = struct{}{}
		}
	}

	var regions model.RecordRegions
	if s := fields["r"]; s != "" {
		if err := json.Unmarshal([]byte(s), &regions); err != nil {
			return "", nil, ErrCorrupted
		}
	}

	var rescue []model.RecordValue
	if s := fields["f"]; s != "" {
		if err := json.Unmarshal([]byte(s), &rescue); err != nil {
			return "", nil, ErrCorrupted
		}
	}

	return name, &model.StoreRecord{
		Name:      name,
		Kind:      kind,
		Values:    values,
		TTL:       ttl,
		Flatten:   fields["m"] == "1",
		Blackhole: blackhole,
		Regions:   regions,
		Rescue:    rescue,
	}, nil
}
