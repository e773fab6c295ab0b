// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package analysis

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Params are the string-valued options of an analysis request. List values
// are comma separated.
type Params map[string]string

// ParamsFromAny converts a decoded JSON object into Params. Arrays become
// comma separated lists; numbers keep their shortest representation.
func ParamsFromAny(in map[string]any) (Params, error) {
	out := make(Params, len(in))
	for k, v := range in {
		s, err := paramString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidParams, k, err)
		}
		out[k] = s
	}
	return out, nil
}

func paramString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			s, err := paramString(e)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, ","), nil
	}
	return "", fmt.Errorf("unsupported value of type %T", v)
}

// ParseParamPairs parses k=v pairs as given on the command line.
func ParseParamPairs(pairs []string) (Params, error) {
	out := make(Params, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", ErrInvalidParams, p)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

// Canonical encodes the non-empty params with sorted keys.
func (p Params) Canonical() string {
	v := url.Values{}
	for k, s := range p {
		if s != "" {
			v.Set(k, s)
		}
	}
	return v.Encode()
}

func (p Params) str(key string) string {
	return strings.TrimSpace(p[key])
}

func (p Params) required(key string) (string, error) {
	v := p.str(key)
	if v == "" {
		return "", fmt.Errorf("%w: %q is required", ErrInvalidParams, key)
	}
	return v, nil
}

func (p Params) list(key string) []string {
	raw := p.str(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (p Params) optFloat(key string) (*float64, error) {
	raw := p.str(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q must be a number, got %q", ErrInvalidParams, key, raw)
	}
	return &v, nil
}

func (p Params) intOr(key string, def int) (int, error) {
	raw := p.str(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %q must be a positive integer, got %q", ErrInvalidParams, key, raw)
	}
	return v, nil
}
