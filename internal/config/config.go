// seehuhn.de/go/pdfprotect - password protection for PDF files
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package config reads the settings of the pdf-protect tool from a JSON
// file.
//
// The settings are stored in the "appConfiguration" section:
//
//	{
//	  "appConfiguration": {
//	    "userPassword": "u",
//	    "ownerPassword": "o",
//	    "sourceFolder": "in",
//	    "outputFolder": "protected",
//	    "sourcePassword": "",
//	    "deleteSourceFile": false,
//	    "workers": 4
//	  }
//	}
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultFile is the name of the settings file which is read if no file
// is given explicitly.
const DefaultFile = "appsettings.json"

// Settings are the values of the "appConfiguration" section.
type Settings struct {
	UserPassword     string `json:"userPassword"`
	OwnerPassword    string `json:"ownerPassword"`
	OutputFolder     string `json:"outputFolder"`
	SourceFolder     string `json:"sourceFolder"`
	SourcePassword   string `json:"sourcePassword"`
	DeleteSourceFile bool   `json:"deleteSourceFile"`
	Workers          int    `json:"workers"`
}

type file struct {
	App *Settings `json:"appConfiguration"`
}

// Load reads the settings file at path.
//
// If path is empty, [DefaultFile] in the directory dir is used.  This
// file is optional: if it does not exist, empty settings are returned.
// Explicitly named files must exist.
func Load(path, dir string) (*Settings, error) {
	optional := false
	if path == "" {
		path = filepath.Join(dir, DefaultFile)
		optional = true
	}

	data, err := os.ReadFile(path)
	if optional && errors.Is(err, fs.ErrNotExist) {
		return &Settings{}, nil
	} else if err != nil {
		return nil, err
	}

	settings := &Settings{}
	err = json.Unmarshal(data, &file{App: settings})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if settings.Workers < 0 {
		return nil, fmt.Errorf("%s: invalid number of workers %d", path, settings.Workers)
	}
	return settings, nil
}

// Folders returns the absolute paths of the source and output folders.
//
// A missing source folder defaults to the working directory cwd, and
// relative source folders are interpreted relative to cwd.  A missing
// output folder defaults to the source folder, and relative output
// folders are interpreted relative to the source folder.
func (s *Settings) Folders(cwd string) (source, output string, err error) {
	if !filepath.IsAbs(cwd) {
		return "", "", fmt.Errorf("working directory %q is not absolute", cwd)
	}

	source = s.SourceFolder
	switch {
	case source == "":
		source = cwd
	case !filepath.IsAbs(source):
		source = filepath.Join(cwd, source)
	}
	source = filepath.Clean(source)

	output = s.OutputFolder
	switch {
	case output == "":
		output = source
	case !filepath.IsAbs(output):
		output = filepath.Join(source, output)
	}
	output = filepath.Clean(output)

	return source, output, nil
}
