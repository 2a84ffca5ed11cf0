/*
Package proxy implements a local REST API for the vehicles of one account.

The API exposes the account's vehicles, their instruments, and their remote commands as JSON:

	GET  /api/1/vehicles                        list vehicles
	GET  /api/1/vehicles/{vin}/instruments      read instruments (?all=true includes unsupported ones)
	POST /api/1/vehicles/{vin}/update           refresh vehicle state and read instruments
	POST /api/1/vehicles/{vin}/command/{name}   send a command; parameters are a JSON object
	GET  /api/1/service_status                  backend service status
	GET  /api/1/raw/{path}                      authenticated GET of a backend endpoint

Errors are returned as {"error": "..."} with a status code derived from the error: 409 when a
command of the same kind is still outstanding, 202 when the vehicle did not confirm a command in
time, 401 when the session cannot be established, 502 for backend failures, and 400 for invalid
parameters. Commands the vehicle does not advertise return 501.

Commands that the vehicle executed but rejected still return 200, with "result": false and the
vendor's reason. Parameters that require the S-PIN default to [Proxy.Spin].
*/
package proxy
