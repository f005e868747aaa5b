package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainGraph = "quantprep/graph/v1"
	DomainRun   = "quantprep/run/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null separator prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GraphHash computes a content-addressed hash of the graph structure:
// node order, ops, targets, args, and kwargs. Annotations and tensor
// flags are excluded - the hash identifies the program, not its
// quantization intent.
//
// Returns an error if a literal argument is not canonically
// serializable (e.g. a float).
func GraphHash(g *Graph) (string, error) {
	nodes := make([]any, 0, g.Len())
	for _, n := range g.Nodes() {
		entry := map[string]any{
			"name": n.Name(),
			"op":   string(n.Op()),
		}
		if n.Target() != "" {
			entry["target"] = n.Target()
		}
		args, err := canonicalArgs(n.Args())
		if err != nil {
			return "", fmt.Errorf("graph hash: node %q: %w", n.Name(), err)
		}
		if len(args) > 0 {
			entry["args"] = args
		}
		if kw := n.Kwargs(); len(kw) > 0 {
			kwMap := make(map[string]any, len(kw))
			for k, a := range kw {
				ca, err := canonicalArg(a)
				if err != nil {
					return "", fmt.Errorf("graph hash: node %q kwarg %q: %w", n.Name(), k, err)
				}
				kwMap[k] = ca
			}
			entry["kwargs"] = kwMap
		}
		nodes = append(nodes, entry)
	}

	canonical, err := MarshalCanonical(map[string]any{"nodes": nodes})
	if err != nil {
		return "", fmt.Errorf("graph hash: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// RunID computes a content-addressed ID for one prepare run over a graph.
// Stable given the same graph, mode, and tool version.
func RunID(graphHash string, training bool, toolVersion string) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"graph_hash":   graphHash,
		"training":     training,
		"tool_version": toolVersion,
	})
	if err != nil {
		return "", fmt.Errorf("run id: %w", err)
	}
	return hashWithDomain(DomainRun, canonical), nil
}

// MustGraphHash is like GraphHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustGraphHash(g *Graph) string {
	h, err := GraphHash(g)
	if err != nil {
		panic(err)
	}
	return h
}

func canonicalArgs(args []Arg) ([]any, error) {
	out := make([]any, 0, len(args))
	for i, a := range args {
		ca, err := canonicalArg(a)
		if err != nil {
			return nil, fmt.Errorf("arg[%d]: %w", i, err)
		}
		out = append(out, ca)
	}
	return out, nil
}

// canonicalArg maps an Arg to a canonically serializable value.
// Node references and literals are kept distinguishable:
//
//	NodeArg    -> {"node": name}
//	LiteralArg -> {"lit": value}
//	ListArg    -> [...]
func canonicalArg(a Arg) (any, error) {
	switch v := a.(type) {
	case NodeArg:
		return map[string]any{"node": v.Node.Name()}, nil
	case ListArg:
		return canonicalArgs(v)
	case LiteralArg:
		switch lit := v.Value.(type) {
		case string, int, int64, bool:
			return map[string]any{"lit": lit}, nil
		default:
			return nil, fmt.Errorf("literal %T is not canonically serializable", v.Value)
		}
	default:
		return nil, fmt.Errorf("unknown arg type %T", a)
	}
}
