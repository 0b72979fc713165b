package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/meikuraledutech/agentflow"
)

// readGraph loads a graph document from path, or stdin for "-". Files ending
// in .yaml or .yml are converted to JSON before parsing.
func readGraph(path string) (*agentflow.Graph, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, err
		}
	}
	return agentflow.ParseGraph(data)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &agentflow.InputError{Msg: "invalid YAML: " + err.Error()}
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, &agentflow.InputError{Msg: "YAML graph cannot be expressed as JSON: " + err.Error()}
	}
	return out, nil
}
