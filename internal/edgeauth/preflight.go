package edgeauth

import "github.com/ubc-cic/expertise-dashboard/pkg/types"

// PreflightResponse answers a CORS OPTIONS call at the edge without
// touching the origin.
func PreflightResponse() *types.CloudFrontResponse {
	return &types.CloudFrontResponse{
		Status: "204",
		Headers: types.Headers{
			"access-control-allow-origin": {{
				Key:   "Access-Control-Allow-Origin",
				Value: "*",
			}},
			"access-control-request-method": {{
				Key:   "Access-Control-Request-Method",
				Value: "PUT, GET, OPTIONS, DELETE",
			}},
			"access-control-allow-headers": {{
				Key:   "Access-Control-Allow-Headers",
				Value: "*",
			}},
		},
	}
}
