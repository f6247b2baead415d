// Copyright 2025 The LUCI Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/gae/service/datastore"
)

// Ensure AnswersStruct implements datastore.PropertyConverter.
var _ datastore.PropertyConverter = &AnswersStruct{}

// AnswersStruct is a wrapper around structpb.Struct holding the free-form
// structured answers attached to a submission.
//
// Implements datastore.PropertyConverter, storing the struct as a serialized
// proto in a single unindexed property.
type AnswersStruct struct {
	structpb.Struct
}

// ParseAnswers decodes a JSON object into an AnswersStruct.
//
// An empty payload yields an empty struct.
func ParseAnswers(raw []byte) (AnswersStruct, error) {
	out := AnswersStruct{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := protojson.Unmarshal(raw, &out.Struct); err != nil {
		return AnswersStruct{}, errors.Fmt("parsing answers: %w", err)
	}
	return out, nil
}

// FromProperty deserializes the struct from the datastore.
// Implements datastore.PropertyConverter.
func (a *AnswersStruct) FromProperty(p datastore.Property) error {
	blob, ok := p.Value().([]byte)
	if !ok {
		return errors.Fmt("answers property has unexpected type %T", p.Value())
	}
	return proto.Unmarshal(blob, &a.Struct)
}

// ToProperty serializes the struct to datastore format.
// Implements datastore.PropertyConverter.
func (a *AnswersStruct) ToProperty() (datastore.Property, error) {
	p := datastore.Property{}
	blob, err := proto.Marshal(&a.Struct)
	if err != nil {
		return p, errors.Fmt("failed to marshal answers: %w", err)
	}
	return p, p.SetValue(blob, datastore.NoIndex)
}
