package orchestrator

import (
	"github.com/seantiz/topoctl/internal/model"
	"github.com/seantiz/topoctl/internal/propbag"
)

const serviceInstanceIDPath = "service-information.service-instance-id"

var (
	serviceDataFields = propbag.NewSchema(
		"sdnc-request-header",
		"request-information",
		"service-information",
		"service-request-input",
		"service-topology",
		"service-level-oper-status",
		"networks",
		"vnfs",
		"pnfs",
		"provided-allotted-resources",
		"consumed-allotted-resources",
		"network-instance-groups",
		"vnfc-instance-groups",
		"forwarding-paths",
		"provided-configurations",
	)

	preloadDataFields = propbag.NewSchema(
		"sdnc-request-header",
		"request-information",
		"preload-network-topology-information",
		"preload-vf-module-topology-information",
		"preload-oper-status",
	)

	configurationDataFields = propbag.NewSchema(
		"sdnc-request-header",
		"request-information",
		"service-information",
		"configuration-information",
		"port-mirror-configuration-request-input",
		"configuration-topology",
		"configuration-oper-status",
	)

	requireServiceInstanceID = Field{serviceInstanceIDPath, "invalid input, null or empty service-instance-id"}

	serviceResponse = ResponseSection{
		Name:           "service-response-information",
		InstanceIDPath: serviceInstanceIDPath,
		ObjectPathKey:  "service-object-path",
	}

	vnfResponse = ResponseSection{
		Name:           "vnf-response-information",
		InstanceIDPath: "vnf-information.vnf-id",
		InstanceIDKey:  "vnfId",
		ObjectPathKey:  "vnf-object-path",
	}

	unassignOrActivate = []model.Action{model.ActionUnassign, model.ActionActivate}
)

// DefaultCatalog returns the topology operations served by default.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		OperationSpec{
			Name:           "service-topology-operation",
			Family:         FamilyService,
			KeyPaths:       []string{serviceInstanceIDPath},
			RequiredFields: []Field{requireServiceInstanceID},
			DeleteActions:  []model.Action{model.ActionDelete},
			DataFields:     serviceDataFields,
			Responses:      []ResponseSection{serviceResponse},
		},
		OperationSpec{
			Name:     "pnf-topology-operation",
			Family:   FamilyService,
			KeyPaths: []string{serviceInstanceIDPath},
			RequiredFields: []Field{
				requireServiceInstanceID,
				{"pnf-details.pnf-id", "invalid input, null or empty pnf-id"},
			},
			ObservedActions: []model.Action{model.ActionActivate},
			DataFields:      serviceDataFields,
			Responses: []ResponseSection{
				serviceResponse,
				{Name: "pnf-response-information", InstanceIDPath: "pnf-details.pnf-id", ObjectPathKey: "pnf-object-path"},
			},
		},
		OperationSpec{
			Name:            "vnf-topology-operation",
			Family:          FamilyService,
			KeyPaths:        []string{serviceInstanceIDPath},
			RequiredFields:  []Field{requireServiceInstanceID},
			ObservedActions: []model.Action{model.ActionActivate},
			DataFields:      serviceDataFields,
			Responses:       []ResponseSection{serviceResponse, vnfResponse},
		},
		OperationSpec{
			Name:     "vf-module-topology-operation",
			Family:   FamilyService,
			KeyPaths: []string{serviceInstanceIDPath},
			RequiredFields: []Field{
				requireServiceInstanceID,
				{"vnf-information.vnf-id", "invalid input, null or empty vnf-id"},
				{"vf-module-information.vf-module-id", "invalid input, vf-module-id is null or empty"},
			},
			ObservedActions: unassignOrActivate,
			DataFields:      serviceDataFields,
			Related: []RelatedSection{{
				Name:      SectionPreloadData,
				Family:    FamilyPreload,
				Partition: model.Desired,
				KeyPaths:  []string{"vf-module-request-input.vf-module-name"},
				KeySuffix: "vf-module",
			}},
			Responses: []ResponseSection{
				serviceResponse,
				vnfResponse,
				{Name: "vf-module-response-information", InstanceIDPath: "vf-module-information.vf-module-id", ObjectPathKey: "vf-module-object-path"},
			},
		},
		OperationSpec{
			Name:            "network-topology-operation",
			Family:          FamilyService,
			KeyPaths:        []string{serviceInstanceIDPath},
			RequiredFields:  []Field{requireServiceInstanceID},
			ObservedActions: []model.Action{model.ActionActivate, model.ActionCreate},
			DataFields:      serviceDataFields,
			Related: []RelatedSection{{
				Name:      SectionPreloadData,
				Family:    FamilyPreload,
				Partition: model.Desired,
				KeyPaths:  []string{"network-request-input.network-name"},
				KeySuffix: "network",
			}},
			Responses: []ResponseSection{
				serviceResponse,
				{Name: "network-response-information", InstanceIDPath: "network-information.network-id", InstanceIDKey: "networkId", ObjectPathKey: "network-object-path"},
			},
		},
		allottedResourceOperation("contrail-route"),
		allottedResourceOperation("security-zone"),
		allottedResourceOperation("connection-attachment"),
		allottedResourceOperation("tunnelxconn"),
		allottedResourceOperation("brg"),
		OperationSpec{
			Name:     "preload-network-topology-operation",
			Family:   FamilyPreload,
			KeyPaths: []string{"preload-network-topology-information.network-topology-identifier-structure.network-name"},
			RequiredFields: []Field{{
				"preload-network-topology-information.network-topology-identifier-structure.network-name",
				"invalid input, null or empty network-name",
			}},
			KeySuffix:     "network",
			ObserveAlways: true,
			DeleteActions: []model.Action{model.ActionDelete},
			DataFields:    preloadDataFields,
		},
		OperationSpec{
			Name:     "preload-vf-module-topology-operation",
			Family:   FamilyPreload,
			KeyPaths: []string{"preload-vf-module-topology-information.vf-module-topology.vf-module-topology-identifier.vf-module-name"},
			RequiredFields: []Field{{
				"preload-vf-module-topology-information.vf-module-topology.vf-module-topology-identifier.vf-module-name",
				"invalid input, null or empty vf-module-name",
			}},
			KeySuffix:     "vf-module",
			ObserveAlways: true,
			DeleteActions: []model.Action{model.ActionDelete},
			DataFields:    preloadDataFields,
		},
		OperationSpec{
			Name:     "port-mirror-topology-operation",
			Family:   FamilyConfiguration,
			KeyPaths: []string{"configuration-information.configuration-id"},
			RequiredFields: []Field{
				{"configuration-information.configuration-id", "invalid input, null or empty configuration-id"},
				requireServiceInstanceID,
			},
			ObservedActions: unassignOrActivate,
			DataFields:      configurationDataFields,
			Responses: []ResponseSection{
				serviceResponse,
				{Name: "configuration-response-information", InstanceIDPath: "configuration-information.configuration-id", ObjectPathKey: "port-mirror-object-path"},
			},
		},
	)
}

func allottedResourceOperation(kind string) OperationSpec {
	return OperationSpec{
		Name:            kind + "-topology-operation",
		Family:          FamilyService,
		KeyPaths:        []string{serviceInstanceIDPath},
		RequiredFields:  []Field{requireServiceInstanceID},
		ObservedActions: unassignOrActivate,
		DataFields:      serviceDataFields,
		Responses: []ResponseSection{
			serviceResponse,
			{
				Name:           kind + "-response-information",
				InstanceIDPath: "allotted-resource-information.allotted-resource-id",
				InstanceIDKey:  "allotted-resource-id",
				ObjectPathKey:  kind + "-object-path",
			},
		},
	}
}
