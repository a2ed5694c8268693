// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files
type HCLParser struct{}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

// blocks are optional, so they decode into pointers
type hclConfig struct {
	DataDir  string `hcl:"data_dir,optional"`
	Instance string `hcl:"instance,optional"`
	LogLevel string `hcl:"log_level,optional"`
	JobCode  string `hcl:"job_code,optional"`

	Alma      *AlmaConfig      `hcl:"alma,block"`
	Dropbox   *DropboxConfig   `hcl:"dropbox,block"`
	Store     *StoreConfig     `hcl:"store,block"`
	Broker    *BrokerConfig    `hcl:"broker,block"`
	Health    *HealthConfig    `hcl:"health,block"`
	Telemetry *TelemetryConfig `hcl:"telemetry,block"`
	Lock      *LockConfig      `hcl:"lock,block"`
	Features  *FeaturesConfig  `hcl:"features,block"`
}

// 📝 Parse parses the config from HCL
func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "config.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	// env() lets a file pull a value from the environment
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
		Functions: hclFunctions(),
	}

	var hclCfg hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &hclCfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	cfg := &Config{
		DataDir:  hclCfg.DataDir,
		Instance: hclCfg.Instance,
		LogLevel: hclCfg.LogLevel,
		JobCode:  hclCfg.JobCode,
	}
	if hclCfg.Alma != nil {
		cfg.Alma = *hclCfg.Alma
	}
	if hclCfg.Dropbox != nil {
		cfg.Dropbox = *hclCfg.Dropbox
	}
	if hclCfg.Store != nil {
		cfg.Store = *hclCfg.Store
	}
	if hclCfg.Broker != nil {
		cfg.Broker = *hclCfg.Broker
	}
	if hclCfg.Health != nil {
		cfg.Health = *hclCfg.Health
	}
	if hclCfg.Telemetry != nil {
		cfg.Telemetry = *hclCfg.Telemetry
	}
	if hclCfg.Lock != nil {
		cfg.Lock = *hclCfg.Lock
	}
	if hclCfg.Features != nil {
		cfg.Features = *hclCfg.Features
	}

	return cfg, nil
}

func hclFunctions() map[string]function.Function {
	return map[string]function.Function{
		"env": function.New(&function.Spec{
			Params: []function.Parameter{{Name: "name", Type: cty.String}},
			Type:   function.StaticReturnType(cty.String),
			Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
				return cty.StringVal(os.Getenv(args[0].AsString())), nil
			},
		}),
	}
}
