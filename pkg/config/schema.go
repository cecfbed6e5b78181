package config

import (
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/durationpb"
)

// The config schema, written as a .proto file, reads:
//
//	message ServerConfig  { optional string address = 1; optional string metrics_address = 2; }
//	message LoggingConfig { optional string log_level = 1; optional string log_handler_type = 2; }
//	message CacheConfig {
//	  optional google.protobuf.Duration default_ttl = 1;
//	  optional google.protobuf.Duration sweep_interval = 2;
//	  optional int32 shard_count = 3;
//	  optional string cache_name = 4;
//	}
//	message Config { optional ServerConfig server = 1; optional LoggingConfig logging = 2; optional CacheConfig cache = 3; }
//
// Leaf field names are the names of the flags they set. Sections only group them and never set flags.

const (
	configPackage     = "ttlcache.config"
	configMessageName = "Config"
)

var durationTypeName = "." + string((&durationpb.Duration{}).ProtoReflect().Descriptor().FullName())

func optionalField(name string, number int32, fieldType descriptorpb.FieldDescriptorProto_Type,
	typeName string) *descriptorpb.FieldDescriptorProto {
	field := &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(name),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     fieldType.Enum(),
	}
	if typeName != "" {
		field.TypeName = proto.String(typeName)
	}
	return field
}

func section(name string, number int32, messageName string) *descriptorpb.FieldDescriptorProto {
	return optionalField(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE,
		"."+configPackage+"."+messageName)
}

func configFileProto() *descriptorpb.FileDescriptorProto {
	const (
		typeString   = descriptorpb.FieldDescriptorProto_TYPE_STRING
		typeInt32    = descriptorpb.FieldDescriptorProto_TYPE_INT32
		typeDuration = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
	)
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String("ttlcache/config.proto"),
		Package:    proto.String(configPackage),
		Syntax:     proto.String("proto2"),
		Dependency: []string{durationpb.File_google_protobuf_duration_proto.Path()},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("ServerConfig"),
				Field: []*descriptorpb.FieldDescriptorProto{
					optionalField("address", 1, typeString, ""),
					optionalField("metrics_address", 2, typeString, ""),
				},
			},
			{
				Name: proto.String("LoggingConfig"),
				Field: []*descriptorpb.FieldDescriptorProto{
					optionalField("log_level", 1, typeString, ""),
					optionalField("log_handler_type", 2, typeString, ""),
				},
			},
			{
				Name: proto.String("CacheConfig"),
				Field: []*descriptorpb.FieldDescriptorProto{
					optionalField("default_ttl", 1, typeDuration, durationTypeName),
					optionalField("sweep_interval", 2, typeDuration, durationTypeName),
					optionalField("shard_count", 3, typeInt32, ""),
					optionalField("cache_name", 4, typeString, ""),
				},
			},
			{
				Name: proto.String(configMessageName),
				Field: []*descriptorpb.FieldDescriptorProto{
					section("server", 1, "ServerConfig"),
					section("logging", 2, "LoggingConfig"),
					section("cache", 3, "CacheConfig"),
				},
			},
		},
	}
}

// configDescriptor returns the descriptor of the root Config message. The file isn't registered globally; it only
// resolves its google.protobuf.Duration dependency from the global registry.
var configDescriptor = sync.OnceValues(func() (protoreflect.MessageDescriptor, error) {
	file, err := protodesc.NewFile(configFileProto(), protoregistry.GlobalFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to build config schema: %w", err)
	}
	md := file.Messages().ByName(configMessageName)
	if md == nil {
		return nil, fmt.Errorf("config schema has no %s message", configMessageName)
	}
	return md, nil
})
