package filters

import "strings"

// Device classification headers
const (
	HeaderDeviceType     = "X-Device-Type"
	HeaderDeviceDetected = "X-Device-Detected"

	DeviceMobile  = "Mobile"
	DeviceDesktop = "Desktop"
)

var mobileMarkers = []string{"Mobile", "Android", "iPhone"}

// ClassifyDevice returns Mobile when the user agent carries a mobile marker.
func ClassifyDevice(userAgent string) string {
	for _, marker := range mobileMarkers {
		if strings.Contains(userAgent, marker) {
			return DeviceMobile
		}
	}
	return DeviceDesktop
}

// DeviceTagger stamps the device class on the forwarded request and mirrors it on the response.
func DeviceTagger(order int) Descriptor {
	return Descriptor{
		Name:  "device",
		Order: order,
		Phase: PhasePre,
		Action: func(ex *Exchange) error {
			device := ClassifyDevice(ex.Request.Header.Get("User-Agent"))
			ex.Request.Header.Set(HeaderDeviceType, device)
			ex.ResponseHeader.Set(HeaderDeviceDetected, device)
			return nil
		},
	}
}
