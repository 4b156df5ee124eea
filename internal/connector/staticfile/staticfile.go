// Package staticfile implements the built-in connector serving flex objects
// bundled with an application.
package staticfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/torosent/flexconnect/internal/connector"
)

// BundleName is the file, below <reference>/changes, holding the bundled flex objects.
const BundleName = "changes-bundle.json"

// Connector reads change bundles from a file system.
type Connector struct {
	fsys fs.FS
}

// New returns a connector reading bundles from fsys. A nil fsys serves no bundles.
func New(fsys fs.FS) *Connector {
	return &Connector{fsys: fsys}
}

// Layers implements connector.Module.
func (c *Connector) Layers() []string {
	return []string{connector.AllLayers}
}

// BundlePath returns the bundle location for reference: dots in the reference
// become directory separators.
func BundlePath(reference string) string {
	return path.Join(strings.ReplaceAll(reference, ".", "/"), "changes", BundleName)
}

// LoadFlexData implements connector.FlexDataLoader. A missing bundle yields
// an empty response.
func (c *Connector) LoadFlexData(ctx context.Context, params connector.LoadParams) (connector.FlexDataResponse, error) {
	response := connector.EmptyFlexDataResponse()
	if err := ctx.Err(); err != nil {
		return response, err
	}
	if c.fsys == nil || params.Reference == "" {
		return response, nil
	}

	name := BundlePath(params.Reference)
	data, err := fs.ReadFile(c.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return response, nil
	}
	if err != nil {
		return response, fmt.Errorf("read %s: %w", name, err)
	}

	var objects []json.RawMessage
	if err := json.Unmarshal(data, &objects); err != nil {
		return response, fmt.Errorf("parse %s: %w", name, err)
	}
	for _, object := range objects {
		sortInto(&response, object)
	}
	return response, nil
}

func sortInto(response *connector.FlexDataResponse, object json.RawMessage) {
	switch gjson.GetBytes(object, "fileType").String() {
	case "variant", "ctrl_variant":
		response.Variants = append(response.Variants, object)
	case "ctrl_variant_change":
		response.VariantChanges = append(response.VariantChanges, object)
	case "ctrl_variant_management_change":
		response.VariantManagementChanges = append(response.VariantManagementChanges, object)
	default:
		if gjson.GetBytes(object, "variantReference").String() != "" {
			response.VariantDependentControlChanges = append(response.VariantDependentControlChanges, object)
			return
		}
		response.Changes = append(response.Changes, object)
	}
}
