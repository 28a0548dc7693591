// Package renderer is the player's renderer controller (§4.6): the
// kiosk-mode page the embedded browser displays, and the driver that
// pushes transition commands into it and reads video playback state
// back out. The actual DOM layer manipulation (two overlapping <div>
// layers, opacity swap/crossfade) lives in the page's own script, the
// same way the teacher keeps overlay HTML/CSS/JS as data served to an
// OBS browser source (internal/overlay) rather than templated
// server-side per request.
//
// Pages are built with a-h/templ's component primitives directly
// (templ.Component / templ.ComponentFunc) rather than .templ-generated
// sources, since this package has no templ CLI in its build.
package renderer

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"

	"github.com/notandrewjones/signage-app/internal/model"
)

// Page renders the kiosk page shell: two layer divs and the client
// script that drives them via the local websocket (§4.6, §4.5).
func Page(wsURL string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, pageHTML, wsURL)
		return err
	})
}

// SplashPage renders the fallback shown when no schedule is active,
// offline with no cache, or otherwise unable to play (§7 "the player
// still renders the splash"). display is the operator-configured logo
// and background (§3 DefaultDisplay, §4.4 "splash assets ... sync on a
// separate code-path"), fetched from the local media server rather than
// the origin directly; assetBaseURL is that local server's /splash
// prefix. display is nil before the first successful config fetch, in
// which case the plain message is shown instead.
func SplashPage(message string, display *model.DefaultDisplay, assetBaseURL string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if display == nil {
			_, err := fmt.Fprintf(w, splashHTML, html.EscapeString(message))
			return err
		}

		bg := backgroundStyle(*display, assetBaseURL)
		logo := ""
		if display.LogoFilename != nil {
			logo = fmt.Sprintf(logoHTML, logoPositionStyle(display.LogoPosition), display.LogoScale*100,
				assetBaseURL+"/"+*display.LogoFilename)
		}
		_, err := fmt.Fprintf(w, configuredSplashHTML, bg, logo)
		return err
	})
}

func backgroundStyle(d model.DefaultDisplay, assetBaseURL string) string {
	switch d.BackgroundMode {
	case model.BackgroundImageMode, model.BackgroundSlideshow:
		if len(d.Backgrounds) > 0 {
			url := assetBaseURL + "/" + d.Backgrounds[0].Filename
			return fmt.Sprintf("background-image:url(%q);background-size:cover;background-position:center", url)
		}
		return "background:" + html.EscapeString(d.BackgroundColor)
	case model.BackgroundVideo:
		return "background:#000"
	default:
		return "background:" + html.EscapeString(d.BackgroundColor)
	}
}

func logoPositionStyle(pos model.LogoPosition) string {
	switch pos {
	case model.LogoTop:
		return "top:5%;left:50%;transform:translateX(-50%)"
	case model.LogoBottom:
		return "bottom:5%;left:50%;transform:translateX(-50%)"
	default:
		return "top:50%;left:50%;transform:translate(-50%,-50%)"
	}
}

// EnrolPage renders the setup screen for an unbound device (§4.8, §7
// "forbidden ... should stop playback and show setup").
func EnrolPage(serverURL string, device *model.Device) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		code := "------"
		if device != nil {
			code = device.AccessCode
		}
		_, err := fmt.Fprintf(w, enrolHTML, html.EscapeString(serverURL), html.EscapeString(code))
		return err
	})
}

const pageHTML = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>signage</title>
<style>
  html,body{margin:0;height:100%%;width:100%%;background:#000;overflow:hidden}
  #stage{position:absolute;inset:0;transform-origin:center center}
  .layer{position:absolute;inset:0;opacity:0;transition:opacity linear}
  .layer.active{opacity:1}
  .layer img,.layer video{width:100%%;height:100%%;object-fit:contain}
</style></head>
<body>
  <div id="stage">
    <div id="l0" class="layer"></div>
    <div id="l1" class="layer"></div>
  </div>
  <script>
  (function(){
    var stage = document.getElementById('stage');
    var layers = [document.getElementById('l0'), document.getElementById('l1')];
    var activeIdx = 0;
    var ws = new WebSocket(%q);

    function applyTransform(orientation, flipH, flipV) {
      var parts = [];
      if (orientation === 'portrait') parts.push('rotate(90deg)');
      parts.push('scale(' + (flipH ? -1 : 1) + ',' + (flipV ? -1 : 1) + ')');
      stage.style.transform = parts.join(' ');
    }

    function mediaElement(item) {
      if (item.file_type === 'video') {
        var v = document.createElement('video');
        v.muted = true; v.playsInline = true;
        v.src = item.url;
        return v;
      }
      var img = document.createElement('img');
      img.src = item.url;
      return img;
    }

    function activeVideo() {
      var el = layers[activeIdx].firstElementChild;
      return (el && el.tagName === 'VIDEO') ? el : null;
    }

    ws.onmessage = function(ev) {
      var msg = JSON.parse(ev.data);
      switch (msg.type) {
        case 'preload': {
          var back = layers[1 - activeIdx];
          back.innerHTML = '';
          back.appendChild(mediaElement(msg.item));
          var v = back.firstElementChild;
          if (v.tagName === 'VIDEO') v.play().catch(function(){});
          break;
        }
        case 'transition': {
          var dur = msg.duration || 0;
          layers.forEach(function(l){ l.style.transitionDuration = dur + 's'; });
          activeIdx = 1 - activeIdx;
          layers[activeIdx].classList.add('active');
          layers[1 - activeIdx].classList.remove('active');
          break;
        }
        case 'seek': {
          var video = activeVideo();
          if (video) video.currentTime = msg.seconds;
          break;
        }
        case 'transform': {
          applyTransform(msg.orientation, msg.flip_h, msg.flip_v);
          break;
        }
      }
    };

    setInterval(function(){
      if (ws.readyState !== 1) return;
      var video = activeVideo();
      ws.send(JSON.stringify({
        type: 'current_time',
        is_video: !!video,
        seconds: video ? video.currentTime : 0,
      }));
    }, 1000);

    // Manual resync key binding (§2, §4.3): 'r' forces an immediate
    // playlist refetch instead of waiting out the poller's own tick.
    document.addEventListener('keydown', function(ev){
      if (ev.key === 'r' || ev.key === 'R') {
        if (ws.readyState === 1) ws.send(JSON.stringify({type: 'resync'}));
      }
    });
  })();
  </script>
</body></html>`

const splashHTML = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>signage</title>
<style>html,body{margin:0;height:100%%;background:#111;color:#888;
  display:flex;align-items:center;justify-content:center;
  font:24px sans-serif}</style></head>
<body><div>%s</div></body></html>`

const configuredSplashHTML = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>signage</title>
<style>html,body{margin:0;height:100%%;overflow:hidden;%s}
  .logo{position:absolute}</style></head>
<body>%s</body></html>`

const logoHTML = `<img class="logo" style="%s;max-width:%.2f%%" src=%q>`

const enrolHTML = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>signage setup</title>
<style>html,body{margin:0;height:100%%;background:#111;color:#eee;
  display:flex;flex-direction:column;align-items:center;justify-content:center;
  font:sans-serif}
  .code{font-size:72px;letter-spacing:0.2em;font-weight:bold}
  .server{color:#888;margin-top:1em}</style></head>
<body>
  <div>Enter this code at %s</div>
  <div class="code">%s</div>
</body></html>`
