package module

import dom "captchahub/internal/services/captcha/domain"

// Ports holds the ports exposed by the captcha module
type Ports struct {
	Service dom.ServicePort
	Worker  dom.WorkerPort
}
