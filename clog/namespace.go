package clog

import "strings"

// NamespaceKey 是日志中命名空间的字段名
const NamespaceKey = "namespace"

const namespaceSeparator = "."

func joinNamespace(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			filtered = append(filtered, p)
		}
	}
	return strings.Join(filtered, namespaceSeparator)
}
