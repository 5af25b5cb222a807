package remote

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/anvil-platform/federation/internal/resolver"
)

func encodeRequest(contextPath, request string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldContext: structpb.NewStringValue(contextPath),
		fieldRequest: structpb.NewStringValue(request),
	}}
}

func decodeRequest(in *structpb.Struct) (contextPath, request string, err error) {
	fields := in.GetFields()
	req, ok := fields[fieldRequest]
	if !ok || req.GetStringValue() == "" {
		return "", "", fmt.Errorf("missing %q field", fieldRequest)
	}
	return fields[fieldContext].GetStringValue(), req.GetStringValue(), nil
}

func encodeTrace(fields map[string]*structpb.Value, t resolver.DependencyTrace) {
	fields[fieldFiles] = stringList(t.Files)
	fields[fieldContexts] = stringList(t.Contexts)
	fields[fieldMissing] = stringList(t.Missing)
}

func encodeResolution(res resolver.Resolution) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldPath:  structpb.NewStringValue(res.Path),
		fieldFound: structpb.NewBoolValue(res.Found),
	}
	encodeTrace(fields, res.Trace)
	return &structpb.Struct{Fields: fields}
}

func decodeResolution(out *structpb.Struct) resolver.Resolution {
	fields := out.GetFields()
	return resolver.Resolution{
		Path:  fields[fieldPath].GetStringValue(),
		Found: fields[fieldFound].GetBoolValue(),
		Trace: decodeTrace(out),
	}
}

func traceStruct(t resolver.DependencyTrace) *structpb.Struct {
	fields := map[string]*structpb.Value{}
	encodeTrace(fields, t)
	return &structpb.Struct{Fields: fields}
}

func decodeTrace(s *structpb.Struct) resolver.DependencyTrace {
	fields := s.GetFields()
	return resolver.DependencyTrace{
		Files:    stringSet(fields[fieldFiles]),
		Contexts: stringSet(fields[fieldContexts]),
		Missing:  stringSet(fields[fieldMissing]),
	}
}

func stringList(s sets.Set[string]) *structpb.Value {
	values := make([]*structpb.Value, 0, s.Len())
	for _, p := range sets.List(s) {
		values = append(values, structpb.NewStringValue(p))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func stringSet(v *structpb.Value) sets.Set[string] {
	out := sets.New[string]()
	for _, item := range v.GetListValue().GetValues() {
		out.Insert(item.GetStringValue())
	}
	return out
}
