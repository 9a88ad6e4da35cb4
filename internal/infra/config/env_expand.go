package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// expandConfigEnv substitutes ${VAR} in string scalars and reports variables that were unset.
// Unquoted scalars are re-typed after substitution so `timeoutSeconds: ${TIMEOUT}` stays an int.
func expandConfigEnv(raw []byte) (string, []string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return "", nil, fmt.Errorf("parse config: %w", err)
	}
	if root.Kind == 0 {
		return "", nil, nil
	}

	missing := make(map[string]struct{})
	expandNode(&root, missing)

	expanded, err := yaml.Marshal(&root)
	if err != nil {
		return "", nil, fmt.Errorf("encode expanded config: %w", err)
	}
	return string(expanded), sortedKeys(missing), nil
}

func expandNode(node *yaml.Node, missing map[string]struct{}) {
	switch node.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range node.Content {
			expandNode(child, missing)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			expandNode(node.Content[i+1], missing)
		}
	case yaml.ScalarNode:
		expandScalar(node, missing)
	}
}

func expandScalar(node *yaml.Node, missing map[string]struct{}) {
	if node.Tag != "" && node.Tag != "!!str" {
		return
	}
	if !strings.Contains(node.Value, "$") {
		return
	}

	expanded := os.Expand(node.Value, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		missing[key] = struct{}{}
		return ""
	})
	if expanded == node.Value {
		return
	}

	if node.Style != 0 {
		node.Tag = "!!str"
		node.Value = expanded
		return
	}
	node.Tag, node.Value = retypeScalar(expanded)
}

func retypeScalar(value string) (string, string) {
	if strings.TrimSpace(value) == "" {
		return "!!str", value
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return "!!int", strconv.FormatInt(n, 10)
	}
	switch strings.ToLower(value) {
	case "true", "false":
		return "!!bool", strings.ToLower(value)
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return "!!float", strconv.FormatFloat(f, 'f', -1, 64)
	}
	return "!!str", value
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
