package resolver

import (
	"encoding/json"
	"fmt"

	"github.com/evanw/esmloader/internal/fs"
	"github.com/evanw/esmloader/internal/js_parser"
	"github.com/evanw/esmloader/internal/logger"
	"go.uber.org/zap"
)

type packageJSON struct {
	// Main field name to the path it contains, relative to the directory of
	// the "package.json" file. Only string values are kept.
	mainFields map[string]string
}

func (r resolverQuery) parsePackageJSON(path string) *packageJSON {
	packageJSONPath := r.fs.Join(path, "package.json")
	contents, err := r.caches.ReadFile(r.fs, packageJSONPath)
	if err != nil {
		logger.Zap().Warn("cannot read package.json",
			zap.String("path", fs.PrettyPath(r.fs, packageJSONPath)), zap.Error(err))
		return nil
	}

	jsonSource := logger.Source{
		KeyPath:    packageJSONPath,
		PrettyPath: fs.PrettyPath(r.fs, packageJSONPath),
		Contents:   contents,
	}

	// Validate first so problems are reported with a line and column
	log := logger.NewDeferLog()
	ok := js_parser.ParseJSON(log, jsonSource)
	for _, msg := range log.Done() {
		logger.Zap().Warn("invalid package.json", logger.MsgFields(msg)...)
	}
	if !ok {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(contents), &fields); err != nil {
		// Valid JSON that isn't an object
		logger.Zap().Warn("invalid package.json",
			zap.String("path", jsonSource.PrettyPath), zap.Error(err))
		return nil
	}

	packageJSON := &packageJSON{mainFields: make(map[string]string)}
	for _, field := range r.options.MainFields {
		raw, ok := fields[field]
		if !ok {
			continue
		}
		var main string
		if err := json.Unmarshal(raw, &main); err != nil {
			if r.debugLogs != nil {
				r.debugLogs.addNote(fmt.Sprintf("Ignoring main field %q since it is not a string", field))
			}
			continue
		}
		packageJSON.mainFields[field] = main
	}
	return packageJSON
}
