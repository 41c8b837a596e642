package command

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Registry returns all raw API commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "problem",
			Action:       "create",
			Method:       "POST",
			PathTemplate: "/api/v1/problems",
			Summary:      "create a record",
			Fields: []Field{
				{Name: "operator", Prompt: "operator", Type: FieldString, Required: true},
				{Name: "commutator", Prompt: "commutator", Type: FieldString, Required: true},
				{Name: "product_id", Aliases: []string{"product"}, Prompt: "product_id", Type: FieldString, Required: true},
				{Name: "start_date", Aliases: []string{"start"}, Prompt: "start_date (YYYY-MM-DD)", Type: FieldString, Required: true},
				{Name: "end_date", Aliases: []string{"end"}, Prompt: "end_date", Type: FieldString},
				{Name: "note", Prompt: "note", Type: FieldString},
				{Name: "status", Prompt: "status (active|inactive)", Type: FieldString},
				{Name: "answer", Prompt: "answer", Type: FieldString},
			},
		},
		{
			Service:      "problem",
			Action:       "list",
			Method:       "GET",
			PathTemplate: "/api/v1/problems",
			Summary:      "list every record",
		},
		{
			Service:      "problem",
			Action:       "get",
			Method:       "GET",
			PathTemplate: "/api/v1/problems/:id",
			Summary:      "show one record",
			Fields: []Field{
				{Name: "id", Prompt: "problem_id", Type: FieldInt64, Required: true},
			},
		},
		{
			Service:      "problem",
			Action:       "query",
			Method:       "GET",
			PathTemplate: "/api/v1/problems/query",
			Summary:      "fetch one page",
			Fields: []Field{
				{Name: "search", Aliases: []string{"q"}, Type: FieldString, Query: true},
				{Name: "sort", Type: FieldString, Query: true},
				{Name: "page", Type: FieldInt, Query: true},
				{Name: "page_size", Aliases: []string{"size"}, Type: FieldInt, Query: true},
			},
		},
		{
			Service:      "problem",
			Action:       "operators",
			Method:       "GET",
			PathTemplate: "/api/v1/problems/operators",
			Summary:      "list operators",
		},
		{
			Service:      "problem",
			Action:       "commutators",
			Method:       "GET",
			PathTemplate: "/api/v1/problems/commutators",
			Summary:      "list commutators of an operator",
			Fields: []Field{
				{Name: "operator", Prompt: "operator", Type: FieldString, Required: true, Query: true},
			},
		},
		{
			Service:      "problem",
			Action:       "aggregates",
			Method:       "GET",
			PathTemplate: "/api/v1/problems/aggregates",
			Summary:      "count records per operator and commutator",
		},
		{
			Service:      "system",
			Action:       "health",
			Method:       "GET",
			PathTemplate: "/healthz",
			Summary:      "check service health",
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		result[cmd.Key()] = cmd
	}
	return result
}

// SortedKeys returns the registry keys in name order.
func SortedKeys(commands map[string]Command) []string {
	keys := make([]string, 0, len(commands))
	for key := range commands {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// BuildRequest turns a command and its params into an HTTP request.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)
	for _, field := range cmd.Fields {
		if field.Required && strings.TrimSpace(params.Get(field.Name)) == "" {
			return RequestSpec{}, fmt.Errorf("%s is required", field.Name)
		}
		if err := checkType(field, params.Get(field.Name)); err != nil {
			return RequestSpec{}, err
		}
	}

	path, err := buildPath(cmd.PathTemplate, params)
	if err != nil {
		return RequestSpec{}, err
	}
	if query := buildQuery(cmd.Fields, params); query != "" {
		path += "?" + query
	}

	var body []byte
	if cmd.Method != "GET" && cmd.Method != "DELETE" {
		body, err = json.Marshal(buildPayload(cmd.Fields, params))
		if err != nil {
			return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
		}
	}

	return RequestSpec{
		Method:  cmd.Method,
		Path:    path,
		Headers: map[string]string{},
		Body:    body,
	}, nil
}

func checkType(field Field, value string) error {
	if value == "" {
		return nil
	}
	switch field.Type {
	case FieldInt:
		if _, err := ParseInt(value); err != nil {
			return fmt.Errorf("invalid %s: %w", field.Name, err)
		}
	case FieldInt64:
		if _, err := ParseInt64(value); err != nil {
			return fmt.Errorf("invalid %s: %w", field.Name, err)
		}
	}
	return nil
}

func buildPath(template string, params Params) (string, error) {
	path := template
	for _, segment := range strings.Split(template, "/") {
		key, ok := strings.CutPrefix(segment, ":")
		if !ok {
			continue
		}
		value := params.Get(key)
		if value == "" {
			return "", fmt.Errorf("missing path parameter: %s", key)
		}
		path = strings.Replace(path, segment, url.PathEscape(value), 1)
	}
	return path, nil
}

func buildQuery(fields []Field, params Params) string {
	values := url.Values{}
	for _, field := range fields {
		if field.Query && params.Get(field.Name) != "" {
			values.Set(field.Name, params.Get(field.Name))
		}
	}
	return values.Encode()
}

func buildPayload(fields []Field, params Params) map[string]string {
	payload := make(map[string]string)
	for _, field := range fields {
		if field.Query || !params.Has(field.Name) {
			continue
		}
		if value := params.Get(field.Name); value != "" {
			payload[field.Name] = value
		}
	}
	return payload
}
