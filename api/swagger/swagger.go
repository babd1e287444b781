package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CampusConnect Clearance API",
        "description": "Multi-step clearance workflow for graduating students",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [
        {"BearerAuth": []}
    ],
    "tags": [
        {"name": "Clearances", "description": "Clearance requests and step decisions"},
        {"name": "Clearance Templates", "description": "Per-department approval chains"}
    ],
    "paths": {
        "/clearances": {
            "get": {
                "tags": ["Clearances"],
                "summary": "List all clearance requests",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["PENDING", "IN_PROGRESS", "APPROVED", "REJECTED"]},
                    {"name": "department", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Admin only", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Clearances"],
                "summary": "Submit a clearance request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitClearanceRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already submitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clearances/me": {
            "get": {
                "tags": ["Clearances"],
                "summary": "Get the caller's clearance status",
                "responses": {
                    "200": {"description": "Request or null data", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clearances/pending": {
            "get": {
                "tags": ["Clearances"],
                "summary": "List requests awaiting the caller's decision",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clearances/summary": {
            "get": {
                "tags": ["Clearances"],
                "summary": "Count clearance requests per overall status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clearances/students/{studentId}": {
            "get": {
                "tags": ["Clearances"],
                "summary": "Get a student's clearance status",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Request or null data", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clearances/students/{studentId}/certificate": {
            "get": {
                "tags": ["Clearances"],
                "summary": "Download the clearance certificate",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF document", "schema": {"type": "file"}},
                    "412": {"description": "Clearance not approved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clearances/{id}": {
            "get": {
                "tags": ["Clearances"],
                "summary": "Get clearance request detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clearances/{id}/history": {
            "get": {
                "tags": ["Clearances"],
                "summary": "List the audit trail of a clearance request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Admin only", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clearances/{id}/steps/{stepId}/action": {
            "post": {
                "tags": ["Clearances"],
                "summary": "Approve or reject a clearance step",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "stepId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ClearanceStepActionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not an approver for this step", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Request or step not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Step already actioned", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clearances/templates": {
            "get": {
                "tags": ["Clearance Templates"],
                "summary": "List clearance step templates",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clearances/templates/{department}": {
            "get": {
                "tags": ["Clearance Templates"],
                "summary": "Get the step template applied to a department",
                "parameters": [
                    {"name": "department", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Clearance Templates"],
                "summary": "Replace a department's step template",
                "parameters": [
                    {"name": "department", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateClearanceTemplateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid template", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SubmitClearanceRequest": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "studentName": {"type": "string"},
                "studentDepartment": {"type": "string"},
                "studentRollNo": {"type": "string"}
            }
        },
        "ClearanceStepActionRequest": {
            "type": "object",
            "properties": {
                "action": {"type": "string", "enum": ["APPROVE", "REJECT"]},
                "comments": {"type": "string"}
            },
            "required": ["action"]
        },
        "StepTemplate": {
            "type": "object",
            "properties": {
                "department": {"type": "string"},
                "approverRole": {"type": "string", "enum": ["faculty", "admin"]}
            },
            "required": ["department", "approverRole"]
        },
        "UpdateClearanceTemplateRequest": {
            "type": "object",
            "properties": {
                "steps": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/StepTemplate"}
                }
            },
            "required": ["steps"]
        },
        "ClearanceStep": {
            "type": "object",
            "properties": {
                "stepId": {"type": "string"},
                "position": {"type": "integer"},
                "department": {"type": "string"},
                "approverRole": {"type": "string"},
                "status": {"type": "string", "enum": ["PENDING", "APPROVED", "REJECTED"]},
                "approverId": {"type": "string"},
                "approverName": {"type": "string"},
                "approvalDate": {"type": "string", "format": "date-time"},
                "comments": {"type": "string"}
            }
        },
        "ClearanceRequest": {
            "type": "object",
            "properties": {
                "requestId": {"type": "string"},
                "studentId": {"type": "string"},
                "studentName": {"type": "string"},
                "studentDepartment": {"type": "string"},
                "studentRollNo": {"type": "string"},
                "submissionDate": {"type": "string", "format": "date-time"},
                "updatedAt": {"type": "string", "format": "date-time"},
                "version": {"type": "integer"},
                "overallStatus": {"type": "string", "enum": ["PENDING", "IN_PROGRESS", "APPROVED", "REJECTED"]},
                "progress": {"type": "integer"},
                "steps": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/ClearanceStep"}
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
