package rpc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/bufbuild/protocompile"
	"golang.org/x/sync/singleflight"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// ServiceTarget names a remote service: the schema file declaring it, its
// package and service name, and the app id the sidecar routes to.
type ServiceTarget struct {
	Proto   string
	Package string
	Service string
	AppID   string
}

// FullName returns the fully-qualified service name
func (t ServiceTarget) FullName() protoreflect.FullName {
	if t.Package == "" {
		return protoreflect.FullName(t.Service)
	}
	return protoreflect.FullName(t.Package + "." + t.Service)
}

// FileSchema is one parsed schema file together with its dependencies
type FileSchema struct {
	Path  string
	files []protoreflect.FileDescriptor
}

// FindService looks a service up by its fully-qualified name
func (s *FileSchema) FindService(name protoreflect.FullName) (protoreflect.ServiceDescriptor, bool) {
	pkg := name.Parent()
	for _, f := range s.files {
		if f.Package() != pkg {
			continue
		}
		if sd := f.Services().ByName(name.Name()); sd != nil {
			return sd, true
		}
	}
	return nil, false
}

// Descriptor is an immutable resolved service
type Descriptor struct {
	ServicePath string
	PackageName string
	ServiceName string
	TargetAppID string
	Service     protoreflect.ServiceDescriptor
}

// Method finds a method by its schema name. A lower camel case name such as
// "createInvoice" also matches "CreateInvoice".
func (d *Descriptor) Method(name string) (protoreflect.MethodDescriptor, bool) {
	methods := d.Service.Methods()
	if md := methods.ByName(protoreflect.Name(name)); md != nil {
		return md, true
	}
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return nil, false
	}
	if md := methods.ByName(protoreflect.Name(string(unicode.ToUpper(r)) + name[size:])); md != nil {
		return md, true
	}
	return nil, false
}

// FullMethod returns the gRPC method path, e.g. "/pkg.Service/Method"
func FullMethod(md protoreflect.MethodDescriptor) string {
	return "/" + string(md.Parent().FullName()) + "/" + string(md.Name())
}

// Registry loads schema files on first use and caches them for the life
// of the process. Concurrent first loads of one path share a single parse;
// failed loads are not cached.
type Registry struct {
	root string

	mu          sync.RWMutex
	schemas     map[string]*FileSchema
	descriptors map[ServiceTarget]*Descriptor
	group       singleflight.Group
}

// NewRegistry creates a registry resolving relative paths against root
func NewRegistry(root string) *Registry {
	return &Registry{
		root:        root,
		schemas:     make(map[string]*FileSchema),
		descriptors: make(map[ServiceTarget]*Descriptor),
	}
}

// Load returns the cached schema for path, parsing it on first use.
// ".proto" files are compiled from source; ".pb" and ".binpb" files are
// read as serialized FileDescriptorSets.
func (r *Registry) Load(ctx context.Context, path string) (*FileSchema, error) {
	r.mu.RLock()
	schema, ok := r.schemas[path]
	r.mu.RUnlock()
	if ok {
		return schema, nil
	}

	v, err, _ := r.group.Do(path, func() (any, error) {
		r.mu.RLock()
		cached, ok := r.schemas[path]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		// shared by every waiter, so one caller's cancellation must not fail the rest
		parsed, err := r.parse(context.WithoutCancel(ctx), path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDescriptorLoad, path, err)
		}

		r.mu.Lock()
		r.schemas[path] = parsed
		r.mu.Unlock()
		return parsed, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*FileSchema), nil
}

// Resolve returns the descriptor of target's service, loading its schema
// if needed.
func (r *Registry) Resolve(ctx context.Context, target ServiceTarget) (*Descriptor, error) {
	r.mu.RLock()
	desc, ok := r.descriptors[target]
	r.mu.RUnlock()
	if ok {
		return desc, nil
	}

	schema, err := r.Load(ctx, target.Proto)
	if err != nil {
		return nil, err
	}
	sd, ok := schema.FindService(target.FullName())
	if !ok {
		return nil, fmt.Errorf("%w: %s: service %s not declared", ErrDescriptorLoad, target.Proto, target.FullName())
	}

	desc = &Descriptor{
		ServicePath: target.Proto,
		PackageName: target.Package,
		ServiceName: target.Service,
		TargetAppID: target.AppID,
		Service:     sd,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.descriptors[target]; ok {
		return existing, nil
	}
	r.descriptors[target] = desc
	return desc, nil
}

func (r *Registry) parse(ctx context.Context, path string) (*FileSchema, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".proto":
		return r.compile(ctx, path)
	case ".pb", ".binpb":
		return r.readDescriptorSet(path)
	default:
		return nil, fmt.Errorf("unsupported schema file extension %q", filepath.Ext(path))
	}
}

func (r *Registry) compile(ctx context.Context, path string) (*FileSchema, error) {
	var importPaths []string
	if r.root != "" && !filepath.IsAbs(path) {
		importPaths = []string{r.root}
	}
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{ImportPaths: importPaths}),
	}
	compiled, err := compiler.Compile(ctx, path)
	if err != nil {
		return nil, err
	}

	files := make([]protoreflect.FileDescriptor, 0, len(compiled))
	for _, f := range compiled {
		files = append(files, f)
	}
	return &FileSchema{Path: path, files: files}, nil
}

func (r *Registry) readDescriptorSet(path string) (*FileSchema, error) {
	full := path
	if r.root != "" && !filepath.IsAbs(path) {
		full = filepath.Join(r.root, path)
	}
	raw, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}

	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("decode descriptor set: %w", err)
	}
	reg, err := protodesc.NewFiles(&set)
	if err != nil {
		return nil, fmt.Errorf("link descriptor set: %w", err)
	}

	var files []protoreflect.FileDescriptor
	reg.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		files = append(files, fd)
		return true
	})
	return &FileSchema{Path: path, files: files}, nil
}
