// SPDX-License-Identifier: MIT

package devenv

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"text/template"

	"github.com/google/renameio/v2"
)

// DefaultConchRef is the flake input the rendered flake.nix pins for the
// external evaluator.
const DefaultConchRef = "github:mibmo/conch"

// flakeTemplate renders the descriptor into the single conch.load call the
// evaluator consumes. Output is deterministic: toolchains are sorted by
// name, platforms and packages keep declaration order.
const flakeTemplate = `{
  inputs = {
    conch.url = "{{ .ConchRef }}";
  };

  outputs = { conch, ... }: conch.load ./. {
    platforms = [
{{- range .Platforms }}
      "{{ . }}"
{{- end }}
    ];

    settings = {
{{- if .Toolchains }}
      development = {
{{- range .Toolchains }}
        {{ .Name }} = {
          enable = {{ .Enable }};
{{- if .Profile }}
          profile = "{{ .Profile }}";
{{- end }}
        };
{{- end }}
      };
{{- end }}
{{- if .Packages }}

      packages = [
{{- range .Packages }}
        "{{ . }}"
{{- end }}
      ];
{{- end }}
    };
  };
}
`

var flakeTmpl = template.Must(template.New("flake").Parse(flakeTemplate))

type toolchainView struct {
	Name    string
	Enable  bool
	Profile string
}

type flakeView struct {
	ConchRef   string
	Platforms  []Platform
	Toolchains []toolchainView
	Packages   []string
}

// RenderFlake writes the flake.nix stanza for this descriptor. Rendering
// is authoring-side output; evaluating the flake stays with the external
// evaluator.
func (d *Descriptor) RenderFlake(w io.Writer) error {
	view := flakeView{
		ConchRef:  DefaultConchRef,
		Platforms: d.Platforms,
		Packages:  d.Packages,
	}

	names := make([]string, 0, len(d.Development))
	for name := range d.Development {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tc := d.Development[name]
		view.Toolchains = append(view.Toolchains, toolchainView{
			Name:    name,
			Enable:  tc.Enable,
			Profile: tc.Profile,
		})
	}

	if err := flakeTmpl.Execute(w, view); err != nil {
		return fmt.Errorf("render flake: %w", err)
	}
	return nil
}

// WriteFlake renders the flake and writes it atomically: the content hits a
// temp file first and replaces path only after a successful fsync.
func (d *Descriptor) WriteFlake(path string) error {
	var buf bytes.Buffer
	if err := d.RenderFlake(&buf); err != nil {
		return err
	}

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending flake file: %w", err)
	}
	defer func() {
		_ = pending.Cleanup()
	}()

	if _, err := buf.WriteTo(pending); err != nil {
		return fmt.Errorf("write flake data: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace flake file: %w", err)
	}

	return nil
}
