/*
   magpie - DiscFerret disc image acquisition
   Copyright (c) 2026, the magpie authors

   This file is part of magpie.

   magpie is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   magpie is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with magpie. If not, see <http://www.gnu.org/licenses/>.
*/

package registry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/discferret/magpie/pkg/script"
)

/*
	Scan walks the folder tree below root depth first, descending at most
	maxDepth levels, and registers the drive types of all drive scripts found.
	Hidden files and folders are skipped, symlinks are followed. Each folder is
	visited once, by its canonical path, so symlink loops end there. Folders
	that cannot be read are silently skipped.

	A script that fails to load does not stop the scan. The drive types of all
	good scripts get registered, and the errors of all bad ones are returned
	together once the scan is complete. Scanning again merges into what has
	been registered before.
*/
func (r *Registry) Scan(root string, maxDepth int) error {
	var errs []error
	r.scanDir(root, 0, maxDepth, map[string]bool{}, &errs)
	return errors.Join(errs...)
}

//
func (r *Registry) scanDir(dir string, depth, maxDepth int,
	visited map[string]bool, errs *[]error) {

	real := dir
	if p, err := filepath.EvalSymlinks(dir); err == nil {
		real = p
	}
	if visited[real] {
		log.WithField("path", dir).Debug("folder already visited, skipping")
		return
	}
	visited[real] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.WithField("path", dir).Debugf("skipping folder: %v", err)
		return
	}

	for _, e := range entries {

		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			log.WithField("path", path).Debugf("skipping entry: %v", err)
			continue
		}

		if info.IsDir() {
			if depth >= maxDepth {
				log.WithField("path", path).Debug(
					"maximum folder depth reached, not descending")
				continue
			}
			log.WithField("path", path).Debug("traversing folder")
			r.scanDir(path, depth+1, maxDepth, visited, errs)

		} else if info.Mode().IsRegular() && strings.HasSuffix(name, r.extension) {
			if err := r.scanFile(path); err != nil {
				log.WithField("path", path).Warnf("drive script rejected: %v", err)
				*errs = append(*errs, err)
			}
		}
	}
}

//
func (r *Registry) scanFile(path string) error {

	// symlinked copies of the same script are not duplicates
	if real, err := filepath.EvalSymlinks(path); err == nil {
		path = real
	}

	s, err := script.Load(path, r.scriptOpts...)
	if err != nil {
		return err
	}

	types := s.Types()
	s.Close()

	log.WithFields(log.Fields{
		"path":  path,
		"types": types,
	}).Debug("drive script scanned")

	return r.register(path, types)
}
