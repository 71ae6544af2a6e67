package graphql

const queryGetResearchers = `query getResearchers($facultiesToFilterOn: [String], $keyword: String) {
  getResearchers(facultiesToFilterOn: $facultiesToFilterOn, keyword: $keyword) {
    key
    attributes {
      label
      firstName
      lastName
      rank
      email
      department
      faculty
      keywords
      size
      color
    }
  }
}`

const queryGetEdges = `query getEdges($facultiesToFilterOn: [String], $keyword: String) {
  getEdges(facultiesToFilterOn: $facultiesToFilterOn, keyword: $keyword) {
    key
    source
    target
    undirected
    attributes {
      color
      size
      sharedPublications
      sharedKeywords
    }
  }
}`

const queryGetAllFaculty = `query getAllFaculty {
  getAllFaculty
}`

const queryGetAllDepartments = `query getAllDepartments {
  getAllDepartments
}`

var queries = map[string]string{
	"getResearchers":    queryGetResearchers,
	"getEdges":          queryGetEdges,
	"getAllFaculty":     queryGetAllFaculty,
	"getAllDepartments": queryGetAllDepartments,
}
