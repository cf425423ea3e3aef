package stats

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

type WalkReportRender interface {
	Write(w io.Writer, r *WalkReport) error
}

type JsonWalkReportRender struct{}

func (jr *JsonWalkReportRender) Write(w io.Writer, r *WalkReport) error {
	return json.NewEncoder(w).Encode(r)
}

type YAMLWalkReportRender struct{}

func (yr *YAMLWalkReportRender) Write(w io.Writer, r *WalkReport) error {
	// 只有最內層的一維陣列輸出成 flow style：[..., ...]
	return forceReadableList(w, r)
}

// RenderOf 依格式名稱取得 renderer（json | yaml）；其餘回傳 nil。
func RenderOf(format string) WalkReportRender {
	switch format {
	case "json":
		return &JsonWalkReportRender{}
	case "yaml", "yml":
		return &YAMLWalkReportRender{}
	default:
		return nil
	}
}

func forceReadableList[T any](w io.Writer, t *T) error {
	var node yaml.Node
	if err := node.Encode(t); err != nil {
		return err
	}
	styleReadableSequences(&node)

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(&node)
}

func styleReadableSequences(n *yaml.Node) {
	if n == nil {
		return
	}

	switch n.Kind {
	case yaml.DocumentNode, yaml.MappingNode:
		for _, c := range n.Content {
			styleReadableSequences(c)
		}

	case yaml.SequenceNode:
		hasChildSeq := false
		for _, c := range n.Content {
			if c != nil && c.Kind == yaml.SequenceNode {
				hasChildSeq = true
				break
			}
		}
		for _, c := range n.Content {
			styleReadableSequences(c)
		}
		if !hasChildSeq {
			n.Style = yaml.FlowStyle
		}
	}
}
