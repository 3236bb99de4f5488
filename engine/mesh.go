// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package engine

import (
	"github.com/grove-tools/unitybundle"
)

// SubMesh is one index range of a Mesh.
type SubMesh struct {
	FirstByte   uint32
	FirstVertex uint32
	IndexCount  uint32
	LocalAABB   *unitybundle.OrderedMap
	Topology    int32
	VertexCount uint32
}

func subMeshFromMap(m *unitybundle.OrderedMap) (SubMesh, error) {
	topology, err := getI32(m, "topology")
	if err != nil {
		return SubMesh{}, err
	}
	indexCount, err := getU32(m, "indexCount")
	if err != nil {
		return SubMesh{}, err
	}
	firstVertex, err := getU32(m, "firstVertex")
	if err != nil {
		return SubMesh{}, err
	}
	vertexCount, err := getU32(m, "vertexCount")
	if err != nil {
		return SubMesh{}, err
	}
	firstByte, err := getU32(m, "firstByte")
	if err != nil {
		return SubMesh{}, err
	}
	localAABB, err := getMap(m, "localAABB")
	if err != nil {
		return SubMesh{}, err
	}

	return SubMesh{
		FirstByte:   firstByte,
		FirstVertex: firstVertex,
		IndexCount:  indexCount,
		LocalAABB:   localAABB,
		Topology:    topology,
		VertexCount: vertexCount,
	}, nil
}

// VertexData is the packed vertex buffer of a Mesh.
type VertexData struct {
	Object
	Channels        []*unitybundle.OrderedMap
	CurrentChannels int32
	Data            []byte
	VertexCount     uint32
}

func vertexDataFromMap(m *unitybundle.OrderedMap) (VertexData, error) {
	object, err := newObject(m)
	if err != nil {
		return VertexData{}, err
	}
	currentChannels, err := getI32(m, "m_CurrentChannels")
	if err != nil {
		return VertexData{}, err
	}
	vertexCount, err := getU32(m, "m_VertexCount")
	if err != nil {
		return VertexData{}, err
	}
	data, err := getBytes(m, "m_DataSize")
	if err != nil {
		return VertexData{}, err
	}
	channelsArray, err := getArray(m, "m_Channels")
	if err != nil {
		return VertexData{}, err
	}
	channels := make([]*unitybundle.OrderedMap, 0, len(channelsArray))
	for _, item := range channelsArray {
		channel, err := unitybundle.AsMap(item)
		if err != nil {
			return VertexData{}, &unitybundle.EngineError{Msg: "m_Channels: " + err.Error()}
		}
		channels = append(channels, channel)
	}

	return VertexData{
		Object:          object,
		Channels:        channels,
		CurrentChannels: currentChannels,
		Data:            data,
		VertexCount:     vertexCount,
	}, nil
}

// Mesh is the typed projection of a decoded Mesh.
type Mesh struct {
	Object
	RootBoneNameHash         uint32
	IndexBuffer              []byte
	BindPose                 []unitybundle.ObjectValue
	BakedConvexCollisionMesh []byte
	MeshCompression          uint8
	SubMeshes                []SubMesh
	VertexData               VertexData
}

// ToMesh projects obj into a Mesh record.
func ToMesh(obj unitybundle.EngineObject) (*Mesh, error) {
	m := obj.Map

	object, err := newObject(m)
	if err != nil {
		return nil, err
	}
	rootBoneNameHash, err := getU32(m, "m_RootBoneNameHash")
	if err != nil {
		return nil, err
	}
	indexBuffer, err := getBytes(m, "m_IndexBuffer")
	if err != nil {
		return nil, err
	}
	bindPose, err := getArray(m, "m_BindPose")
	if err != nil {
		return nil, err
	}
	bakedConvex, err := getBytes(m, "m_BakedConvexCollisionMesh")
	if err != nil {
		return nil, err
	}
	meshCompression, err := getU8(m, "m_MeshCompression")
	if err != nil {
		return nil, err
	}

	subMeshesArray, err := getArray(m, "m_SubMeshes")
	if err != nil {
		return nil, err
	}
	subMeshes := make([]SubMesh, 0, len(subMeshesArray))
	for _, item := range subMeshesArray {
		subMap, err := unitybundle.AsMap(item)
		if err != nil {
			return nil, &unitybundle.EngineError{Msg: "m_SubMeshes: " + err.Error()}
		}
		subMesh, err := subMeshFromMap(subMap)
		if err != nil {
			return nil, err
		}
		subMeshes = append(subMeshes, subMesh)
	}

	vertexMap, err := getMap(m, "m_VertexData")
	if err != nil {
		return nil, err
	}
	vertexData, err := vertexDataFromMap(vertexMap)
	if err != nil {
		return nil, err
	}

	return &Mesh{
		Object:                   object,
		RootBoneNameHash:         rootBoneNameHash,
		IndexBuffer:              indexBuffer,
		BindPose:                 bindPose,
		BakedConvexCollisionMesh: bakedConvex,
		MeshCompression:          meshCompression,
		SubMeshes:                subMeshes,
		VertexData:               vertexData,
	}, nil
}
