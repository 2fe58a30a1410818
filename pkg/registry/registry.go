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

/*
	Package registry keeps track of which drive script defines which drive
	type. Script directories are scanned once at start-up, scripts are only
	kept loaded for drive types that actually get resolved.
*/
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/discferret/magpie/pkg/drive"
	"github.com/discferret/magpie/pkg/script"
)

//
const DefaultExtension = ".lua"

// DefaultMaxDepth limits how deep Scan descends into sub-folders.
const DefaultMaxDepth = 8

//
var (
	ErrUnknownDriveType = errors.New("unknown drive type")
	ErrDuplicateType    = errors.New("drive type already defined")
)

// DuplicatePolicy decides what happens when a second script file defines a
// drive type that is already known.
type DuplicatePolicy int

const (
	// DuplicateReject keeps the first definition, and reports the second one
	// as an error.
	DuplicateReject DuplicatePolicy = iota
	// DuplicateOverwrite lets the last definition win.
	DuplicateOverwrite
)

// ParsePolicy parses a policy name, "reject" or "overwrite".
func ParsePolicy(p string) (DuplicatePolicy, error) {
	switch p {
	case "", "reject":
		return DuplicateReject, nil
	case "overwrite":
		return DuplicateOverwrite, nil
	default:
		return DuplicateReject, fmt.Errorf("unknown duplicate policy: %s", p)
	}
}

//
func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicateReject:
		return "reject"
	case DuplicateOverwrite:
		return "overwrite"
	default:
		return "<unknown>"
	}
}

// Option configures a registry.
type Option func(r *Registry)

// WithExtension sets the file name extension of drive scripts.
func WithExtension(ext string) Option {
	return func(r *Registry) {
		r.extension = ext
	}
}

//
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(r *Registry) {
		r.policy = p
	}
}

// WithScriptOptions sets options used when loading scripts.
func WithScriptOptions(opts ...script.Option) Option {
	return func(r *Registry) {
		r.scriptOpts = opts
	}
}

//
func New(opts ...Option) *Registry {
	r := &Registry{
		extension: DefaultExtension,
		types:     map[string]string{},
		scripts:   map[string]*script.Script{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Registry maps drive types to the scripts defining them.
type Registry struct {
	//
	extension  string
	policy     DuplicatePolicy
	scriptOpts []script.Option
	// drive type -> script path
	types map[string]string
	// script path -> loaded script
	scripts map[string]*script.Script
	//
	mutex sync.RWMutex
}

// Entry is a drive type and the script defining it.
type Entry struct {
	DriveType string `json:"driveType" yaml:"driveType"`
	Path      string `json:"path" yaml:"path"`
}

// Types returns all known drive types, sorted by drive type.
func (r *Registry) Types() []Entry {

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ret := make([]Entry, 0, len(r.types))
	for t, p := range r.types {
		ret = append(ret, Entry{DriveType: t, Path: p})
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].DriveType < ret[j].DriveType
	})
	return ret
}

// Len returns the number of known drive types.
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.types)
}

/*
	register records the drive types defined by the script at path, applying
	the duplicate policy. Types accepted before a rejected duplicate stay
	registered.
*/
func (r *Registry) register(path string, types []string) error {

	r.mutex.Lock()
	defer r.mutex.Unlock()

	var errs []error

	for _, t := range types {
		if present, ok := r.types[t]; ok && present != path {
			if r.policy == DuplicateReject {
				errs = append(errs, &script.ParseError{
					Path:      path,
					DriveType: t,
					Err: fmt.Errorf("%w in %s", ErrDuplicateType, present),
				})
				continue
			}
			log.WithFields(log.Fields{
				"type":     t,
				"previous": present,
				"path":     path,
			}).Warn("drive type redefined, overwriting")
		}
		r.types[t] = path
	}

	return errors.Join(errs...)
}

/*
	Resolve looks up driveType, loads its script if not yet loaded, and has the
	script parse the drive spec for this type. The returned script is owned by
	the registry and stays loaded until the registry is closed.
*/
func (r *Registry) Resolve(driveType string) (*drive.Descriptor, *script.Script, error) {

	s, err := r.scriptFor(driveType)
	if err != nil {
		return nil, nil, err
	}

	d, err := s.Descriptor(driveType)
	if err != nil {
		return nil, nil, err
	}

	return d, s, nil
}

//
func (r *Registry) scriptFor(driveType string) (*script.Script, error) {

	r.mutex.Lock()
	defer r.mutex.Unlock()

	path, ok := r.types[driveType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriveType, driveType)
	}

	if s, ok := r.scripts[path]; ok {
		return s, nil
	}

	s, err := script.Load(path, r.scriptOpts...)
	if err != nil {
		return nil, err
	}

	// the file may have changed since the scan
	if !s.Defines(driveType) {
		s.Close()
		return nil, fmt.Errorf("%w: %s no longer defined by %s",
			ErrUnknownDriveType, driveType, path)
	}

	log.WithFields(log.Fields{
		"type": driveType,
		"path": path,
	}).Debug("drive script loaded")

	r.scripts[path] = s
	return s, nil
}

// Close releases all loaded scripts.
func (r *Registry) Close() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for p, s := range r.scripts {
		s.Close()
		delete(r.scripts, p)
	}
}
