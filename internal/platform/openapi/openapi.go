// Package openapi describes the patient API as an OpenAPI 3 document built
// with kin-openapi. Field constraints mirror the validator tags on
// patient.Fields so clients see the same rules the service enforces.
package openapi

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"

	"github.com/ehr/patients/internal/domain/patient"
)

const (
	refPatient    = "#/components/schemas/Patient"
	refAttributes = "#/components/schemas/PatientAttributes"
	refCreate     = "#/components/schemas/PatientCreate"
	refUpdate     = "#/components/schemas/PatientUpdate"
	refMessage    = "#/components/schemas/Message"
	refError      = "#/components/schemas/Error"
)

// Generator builds the OpenAPI document for one service version.
type Generator struct {
	version string
	baseURL string
}

func NewGenerator(version, baseURL string) *Generator {
	return &Generator{version: version, baseURL: baseURL}
}

// GenerateSpec produces the document.
func (g *Generator) GenerateSpec() *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "Patient Management System API",
			Description: "Manage patient records with derived BMI and health verdict",
			Version:     g.version,
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: componentSchemas(),
		},
	}
	if g.baseURL != "" {
		doc.Servers = openapi3.Servers{{URL: g.baseURL}}
	}

	idParam := &openapi3.ParameterRef{Value: openapi3.NewPathParameter("id").
		WithDescription("Patient id").
		WithSchema(openapi3.NewStringSchema())}

	keyed := openapi3.NewObjectSchema()
	keyed.AdditionalProperties = openapi3.AdditionalProperties{Schema: ref(refAttributes)}
	list := operation("listPatients", "List all patients",
		withStatus(http.StatusOK, "Patients keyed by id", &openapi3.SchemaRef{Value: keyed}),
		withError(http.StatusInternalServerError, "Store unavailable"),
	)
	doc.AddOperation("/views", http.MethodGet, list)

	get := operation("getPatient", "Fetch one patient",
		withStatus(http.StatusOK, "The patient", ref(refPatient)),
		withError(http.StatusBadRequest, "Unknown id"),
		withError(http.StatusInternalServerError, "Store unavailable"),
	)
	get.Parameters = openapi3.Parameters{idParam}
	doc.AddOperation("/patient/{id}", http.MethodGet, get)

	var fields []interface{}
	for _, f := range patient.SortFields() {
		fields = append(fields, f)
	}
	sortBy := openapi3.NewStringSchema().WithEnum(fields...)
	order := openapi3.NewStringSchema().WithEnum(patient.OrderAsc, patient.OrderDesc)
	order.Default = patient.OrderAsc
	items := openapi3.NewArraySchema()
	items.Items = ref(refPatient)
	sorted := operation("sortPatients", "List patients ordered by a numeric field",
		withStatus(http.StatusOK, "Sorted patients", &openapi3.SchemaRef{Value: items}),
		withError(http.StatusBadRequest, "Invalid sort field or order"),
		withError(http.StatusInternalServerError, "Store unavailable"),
	)
	sorted.Parameters = openapi3.Parameters{
		{Value: openapi3.NewQueryParameter("sort_by").WithRequired(true).WithSchema(sortBy)},
		{Value: openapi3.NewQueryParameter("order").WithSchema(order)},
	}
	doc.AddOperation("/sort", http.MethodGet, sorted)

	create := operation("createPatient", "Create a patient",
		withStatus(http.StatusCreated, "Created", ref(refMessage)),
		withError(http.StatusBadRequest, "Patient already exists"),
		withError(http.StatusUnprocessableEntity, "Validation failed"),
		withError(http.StatusInternalServerError, "Store unavailable"),
	)
	create.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
		WithRequired(true).
		WithJSONSchemaRef(ref(refCreate))}
	doc.AddOperation("/create", http.MethodPost, create)

	update := operation("updatePatient", "Update some fields of a patient",
		withStatus(http.StatusOK, "Updated", ref(refMessage)),
		withError(http.StatusBadRequest, "Unknown id"),
		withError(http.StatusUnprocessableEntity, "Validation failed"),
		withError(http.StatusInternalServerError, "Store unavailable"),
	)
	update.Parameters = openapi3.Parameters{idParam}
	update.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
		WithRequired(true).
		WithJSONSchemaRef(ref(refUpdate))}
	doc.AddOperation("/update/{id}", http.MethodPut, update)

	del := operation("deletePatient", "Delete a patient",
		withStatus(http.StatusOK, "Deleted", ref(refMessage)),
		withError(http.StatusBadRequest, "Unknown id"),
		withError(http.StatusInternalServerError, "Store unavailable"),
	)
	del.Parameters = openapi3.Parameters{idParam}
	doc.AddOperation("/delete/{id}", http.MethodDelete, del)

	return doc
}

func operation(id, summary string, responses ...openapi3.NewResponsesOption) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = id
	op.Summary = summary
	op.Tags = []string{"patients"}
	op.Responses = openapi3.NewResponses(responses...)
	return op
}

func withStatus(code int, description string, schema *openapi3.SchemaRef) openapi3.NewResponsesOption {
	resp := openapi3.NewResponse().WithDescription(description).WithJSONSchemaRef(schema)
	return openapi3.WithStatus(code, &openapi3.ResponseRef{Value: resp})
}

func withError(code int, description string) openapi3.NewResponsesOption {
	return withStatus(code, description, ref(refError))
}

func ref(path string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef(path, nil)
}

func componentSchemas() openapi3.Schemas {
	id := openapi3.NewStringSchema().WithMinLength(1)
	age := openapi3.NewIntegerSchema().WithMin(0).WithMax(100).WithExclusiveMin(true).WithExclusiveMax(true)
	height := openapi3.NewFloat64Schema().WithMin(0).WithExclusiveMin(true)
	height.Description = "Height in meters"
	weight := openapi3.NewFloat64Schema().WithMin(3).WithExclusiveMin(true)
	weight.Description = "Weight in kilograms"
	bmi := openapi3.NewFloat64Schema()
	bmi.Description = "weight / height^2 rounded to two decimals"
	bmi.ReadOnly = true
	verdict := openapi3.NewStringSchema().WithEnum(
		patient.VerdictUnderweight, patient.VerdictNormal, patient.VerdictOverweight, patient.VerdictObese)
	verdict.ReadOnly = true

	// order matches the stored record
	input := []struct {
		name   string
		schema *openapi3.Schema
	}{
		{"name", openapi3.NewStringSchema().WithMinLength(1)},
		{"city", openapi3.NewStringSchema().WithMinLength(1)},
		{"age", age},
		{"gender", openapi3.NewStringSchema().WithEnum(patient.GenderMale, patient.GenderFemale, patient.GenderOther)},
		{"height", height},
		{"weight", weight},
	}

	attributes := openapi3.NewObjectSchema()
	full := openapi3.NewObjectSchema().WithProperty("id", id)
	create := openapi3.NewObjectSchema().WithProperty("id", id)
	update := openapi3.NewObjectSchema()
	for _, f := range input {
		attributes.WithProperty(f.name, f.schema)
		full.WithProperty(f.name, f.schema)
		create.WithProperty(f.name, f.schema)
		update.WithProperty(f.name, f.schema)
		create.Required = append(create.Required, f.name)
	}
	create.Required = append([]string{"id"}, create.Required...)
	for _, s := range []*openapi3.Schema{attributes, full} {
		s.WithProperty("bmi", bmi).WithProperty("verdict", verdict)
	}

	message := openapi3.NewObjectSchema().WithProperty("message", openapi3.NewStringSchema())
	message.Required = []string{"message"}

	fieldError := openapi3.NewObjectSchema().
		WithProperty("field", openapi3.NewStringSchema()).
		WithProperty("constraint", openapi3.NewStringSchema()).
		WithProperty("message", openapi3.NewStringSchema())
	errSchema := openapi3.NewObjectSchema().
		WithProperty("detail", openapi3.NewStringSchema()).
		WithProperty("errors", openapi3.NewArraySchema().WithItems(fieldError))
	errSchema.Required = []string{"detail"}

	return openapi3.Schemas{
		"PatientAttributes": openapi3.NewSchemaRef("", attributes),
		"Patient":           openapi3.NewSchemaRef("", full),
		"PatientCreate":     openapi3.NewSchemaRef("", create),
		"PatientUpdate":     openapi3.NewSchemaRef("", update),
		"Message":           openapi3.NewSchemaRef("", message),
		"Error":             openapi3.NewSchemaRef("", errSchema),
	}
}

// RegisterRoutes registers the OpenAPI endpoints.
func (g *Generator) RegisterRoutes(group *echo.Group) {
	doc := g.GenerateSpec()
	group.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, doc)
	})
	group.GET("/docs", func(c echo.Context) error {
		return c.HTML(http.StatusOK, swaggerUIHTML)
	})
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Patient Management System API - Swagger UI</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" >
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/openapi.json",
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [SwaggerUIBundle.presets.apis],
      layout: "BaseLayout"
    })
  </script>
</body>
</html>`
